package http

import (
	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ── Ledger ────────────────────────────────────────────────────────────────────

func toEntry(e entity.StockEntry) dto.StockEntryResponse {
	return dto.StockEntryResponse{
		StorageUnitID: e.StorageUnitID,
		ProductID:     e.ProductID,
		Available:     e.Available,
		Reserved:      e.Reserved,
		InTransit:     e.InTransit,
		Total:         e.Total(),
		Version:       e.Version,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toMovement(m *entity.StockMovement) dto.StockMovementResponse {
	return dto.StockMovementResponse{
		ID:             m.ID,
		StorageUnitID:  m.StorageUnitID,
		ProductID:      m.ProductID,
		Cause:          string(m.Cause),
		Reason:         m.Reason,
		DeltaAvailable: m.DeltaAvailable,
		DeltaReserved:  m.DeltaReserved,
		DeltaInTransit: m.DeltaInTransit,
		Reference:      m.Reference,
		ActorID:        m.ActorID,
		CreatedAt:      m.CreatedAt,
	}
}

func toMovements(list []*entity.StockMovement) []dto.StockMovementResponse {
	out := make([]dto.StockMovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMovement(m))
	}
	return out
}

// ── Documentos ────────────────────────────────────────────────────────────────

func toOrder(o *entity.Order) dto.OrderResponse {
	out := dto.OrderResponse{
		ID:                  o.ID,
		CompanyID:           o.CompanyID,
		MarketplaceID:       o.MarketplaceID,
		ExternalID:          o.ExternalID,
		Status:              string(o.Status),
		ShippingWarehouseID: o.ShippingWarehouseID,
		ShippingDate:        o.ShippingDate,
		CustomerName:        o.CustomerName,
		TotalPrice:          o.TotalPrice,
		Weight:              o.Weight,
		Items:               make([]dto.OrderItemResponse, 0, len(o.Items)),
		LastSync:            o.LastSync,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, dto.OrderItemResponse{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			Price:         it.Price,
			StorageUnitID: it.StorageUnitID,
			IsProcessed:   it.IsProcessed,
			Unfulfillable: it.Unfulfillable,
		})
	}
	return out
}

func toSupply(s *entity.Supply) dto.SupplyResponse {
	out := dto.SupplyResponse{
		ID:                     s.ID,
		CompanyID:              s.CompanyID,
		Name:                   s.Name,
		Status:                 string(s.Status),
		SourceWarehouseID:      s.SourceWarehouseID,
		DestinationWarehouseID: s.DestinationWarehouseID,
		StorageUnitID:          s.StorageUnitID,
		SupplyDate:             s.SupplyDate,
		TimeSlot:               s.TimeSlot,
		PalletsCount:           s.PalletsCount,
		BoxesCount:             s.BoxesCount,
		PickupRequired:         s.PickupRequired,
		Comment:                s.Comment,
		Items:                  make([]dto.SupplyItemResponse, 0, len(s.Items)),
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, dto.SupplyItemResponse{
			ID:               it.ID,
			ProductID:        it.ProductID,
			Quantity:         it.Quantity,
			QuantityReceived: it.QuantityReceived,
			Shortfall:        it.Shortfall,
			Remaining:        it.Remaining(),
		})
	}
	for _, d := range s.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, dto.SupplyDiscrepancyResponse{
			ItemID:    d.ItemID,
			ProductID: d.ProductID,
			Expected:  d.Expected,
			Received:  d.Received,
			Shortfall: d.Shortfall,
			Reason:    d.Reason,
			CreatedAt: d.CreatedAt,
		})
	}
	return out
}

func toShipment(s *entity.Shipment, links []*entity.ShipmentOrder) dto.ShipmentResponse {
	out := dto.ShipmentResponse{
		ID:               s.ID,
		CompanyID:        s.CompanyID,
		WarehouseID:      s.WarehouseID,
		Status:           string(s.Status),
		ShipmentDate:     s.ShipmentDate,
		TransportCompany: s.TransportCompany,
		TrackingNumber:   s.TrackingNumber,
		PalletsCount:     s.PalletsCount,
		BoxesCount:       s.BoxesCount,
		TotalWeight:      s.TotalWeight,
		Comment:          s.Comment,
		Orders:           make([]dto.ShipmentOrderResponse, 0, len(links)),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	for _, l := range links {
		if !l.IsActive {
			continue
		}
		out.Orders = append(out.Orders, dto.ShipmentOrderResponse{OrderID: l.OrderID, IsProcessed: l.IsProcessed})
	}
	return out
}

func toInventory(inv *entity.Inventory) dto.InventoryResponse {
	out := dto.InventoryResponse{
		ID:              inv.ID,
		CompanyID:       inv.CompanyID,
		WarehouseID:     inv.WarehouseID,
		Name:            inv.Name,
		Status:          string(inv.Status),
		IncludeReserved: inv.IncludeReserved,
		StartDate:       inv.StartDate,
		EndDate:         inv.EndDate,
		Comment:         inv.Comment,
		Items:           make([]dto.InventoryItemResponse, 0, len(inv.Items)),
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, dto.InventoryItemResponse{
			ID:                it.ID,
			StorageUnitID:     it.StorageUnitID,
			ProductID:         it.ProductID,
			ExpectedQuantity:  it.ExpectedQuantity,
			ActualQuantity:    it.ActualQuantity,
			IsChecked:         it.IsChecked,
			HasDiscrepancy:    it.HasDiscrepancy(),
			DiscrepancyReason: it.DiscrepancyReason,
			IsApplied:         it.IsApplied,
		})
	}
	return out
}
