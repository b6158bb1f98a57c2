package dto

import "time"

// StartAuditRequest entrada para planificar (y opcionalmente iniciar) una toma de inventario.
// IncludeReserved nil = valor por defecto de configuración.
type StartAuditRequest struct {
	WarehouseID     string `json:"warehouse_id" validate:"required"`
	Name            string `json:"name"`
	Comment         string `json:"comment,omitempty"`
	IncludeReserved *bool  `json:"include_reserved,omitempty"`
	Start           bool   `json:"start"`
}

// SubmitCountRequest conteo de una línea.
type SubmitCountRequest struct {
	Quantity          int64  `json:"quantity" validate:"min=0"`
	DiscrepancyReason string `json:"discrepancy_reason,omitempty"`
}

// AddFindingRequest producto encontrado en una ubicación sin stock esperado.
type AddFindingRequest struct {
	StorageUnitID string `json:"storage_unit_id" validate:"required"`
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int64  `json:"quantity" validate:"min=0"`
}

// InventoryItemResponse salida de una línea.
type InventoryItemResponse struct {
	ID                string `json:"id"`
	StorageUnitID     string `json:"storage_unit_id"`
	ProductID         string `json:"product_id"`
	ExpectedQuantity  int64  `json:"expected_quantity"`
	ActualQuantity    *int64 `json:"actual_quantity"`
	IsChecked         bool   `json:"is_checked"`
	HasDiscrepancy    bool   `json:"has_discrepancy"`
	DiscrepancyReason string `json:"discrepancy_reason,omitempty"`
	IsApplied         bool   `json:"is_applied"`
}

// InventoryResponse salida de una toma de inventario.
type InventoryResponse struct {
	ID              string                  `json:"id"`
	CompanyID       string                  `json:"company_id"`
	WarehouseID     string                  `json:"warehouse_id"`
	Name            string                  `json:"name"`
	Status          string                  `json:"status"`
	IncludeReserved bool                    `json:"include_reserved"`
	StartDate       *time.Time              `json:"start_date,omitempty"`
	EndDate         *time.Time              `json:"end_date,omitempty"`
	Comment         string                  `json:"comment,omitempty"`
	Items           []InventoryItemResponse `json:"items"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}
