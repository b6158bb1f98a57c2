package memory

import "github.com/jhoicas/fbs-core/internal/domain/entity"

// Los agregados llevan slices y punteros; se copian en profundidad al entrar y salir del store.

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneOrder(o entity.Order) entity.Order {
	o.ShippingDate = clonePtr(o.ShippingDate)
	o.Items = append([]entity.OrderItem(nil), o.Items...)
	return o
}

func cloneSupply(s entity.Supply) entity.Supply {
	s.SupplyDate = clonePtr(s.SupplyDate)
	items := make([]entity.SupplyItem, len(s.Items))
	for i, it := range s.Items {
		it.Receipts = append([]entity.SupplyReceipt(nil), it.Receipts...)
		items[i] = it
	}
	s.Items = items
	s.Discrepancies = append([]entity.SupplyDiscrepancy(nil), s.Discrepancies...)
	return s
}

func cloneShipment(s entity.Shipment) entity.Shipment {
	s.ShipmentDate = clonePtr(s.ShipmentDate)
	return s
}

func cloneInventory(inv entity.Inventory) entity.Inventory {
	inv.StartDate = clonePtr(inv.StartDate)
	inv.EndDate = clonePtr(inv.EndDate)
	items := make([]entity.InventoryItem, len(inv.Items))
	for i, it := range inv.Items {
		it.ActualQuantity = clonePtr(it.ActualQuantity)
		it.CheckedAt = clonePtr(it.CheckedAt)
		items[i] = it
	}
	inv.Items = items
	return inv
}

func cloneUnit(u entity.StorageUnit) entity.StorageUnit {
	u.MaxWeight = clonePtr(u.MaxWeight)
	u.MaxItems = clonePtr(u.MaxItems)
	return u
}

func cloneMarketplace(m entity.Marketplace) entity.Marketplace {
	m.LastSync = clonePtr(m.LastSync)
	return m
}
