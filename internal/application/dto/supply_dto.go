package dto

import "time"

// CreateSupplyRequest entrada para crear un suministro en borrador.
type CreateSupplyRequest struct {
	Name                   string              `json:"name"`
	SourceWarehouseID      string              `json:"source_warehouse_id"`
	DestinationWarehouseID string              `json:"destination_warehouse_id" validate:"required"`
	StorageUnitID          string              `json:"storage_unit_id" validate:"required"`
	SupplyDate             *time.Time          `json:"supply_date,omitempty"`
	TimeSlot               string              `json:"time_slot,omitempty"`
	PalletsCount           int                 `json:"pallets_count"`
	BoxesCount             int                 `json:"boxes_count"`
	PickupRequired         bool                `json:"pickup_required"`
	Comment                string              `json:"comment,omitempty"`
	Items                  []SupplyItemRequest `json:"items" validate:"required,min=1"`
}

// SupplyItemRequest línea esperada.
type SupplyItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

// ReceiveSupplyItemRequest evento de recepción. ReceiptID identifica el evento para reintentos.
type ReceiveSupplyItemRequest struct {
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	ReceiptID string `json:"receipt_id"`
}

// CloseSupplyRequest cierre forzado con faltante.
type CloseSupplyRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// SupplyItemResponse salida de una línea.
type SupplyItemResponse struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	Quantity         int64  `json:"quantity"`
	QuantityReceived int64  `json:"quantity_received"`
	Shortfall        int64  `json:"shortfall"`
	Remaining        int64  `json:"remaining"`
}

// SupplyDiscrepancyResponse faltante registrado.
type SupplyDiscrepancyResponse struct {
	ItemID    string    `json:"item_id"`
	ProductID string    `json:"product_id"`
	Expected  int64     `json:"expected"`
	Received  int64     `json:"received"`
	Shortfall int64     `json:"shortfall"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// SupplyResponse salida de un suministro.
type SupplyResponse struct {
	ID                     string                      `json:"id"`
	CompanyID              string                      `json:"company_id"`
	Name                   string                      `json:"name"`
	Status                 string                      `json:"status"`
	SourceWarehouseID      string                      `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID string                      `json:"destination_warehouse_id"`
	StorageUnitID          string                      `json:"storage_unit_id"`
	SupplyDate             *time.Time                  `json:"supply_date,omitempty"`
	TimeSlot               string                      `json:"time_slot,omitempty"`
	PalletsCount           int                         `json:"pallets_count"`
	BoxesCount             int                         `json:"boxes_count"`
	PickupRequired         bool                        `json:"pickup_required"`
	Comment                string                      `json:"comment,omitempty"`
	Items                  []SupplyItemResponse        `json:"items"`
	Discrepancies          []SupplyDiscrepancyResponse `json:"discrepancies,omitempty"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}
