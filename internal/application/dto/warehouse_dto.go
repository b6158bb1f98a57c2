package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateWarehouseRequest entrada para crear una bodega.
type CreateWarehouseRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=200"`
	Type          string `json:"type" validate:"required"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
}

// WarehouseResponse salida de una bodega.
type WarehouseResponse struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Address       string    `json:"address"`
	ContactPerson string    `json:"contact_person"`
	ContactPhone  string    `json:"contact_phone"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateStorageUnitRequest entrada para crear una ubicación.
type CreateStorageUnitRequest struct {
	WarehouseID string           `json:"warehouse_id" validate:"required"`
	ParentID    string           `json:"parent_id"`
	Code        string           `json:"code" validate:"required"`
	Name        string           `json:"name"`
	Type        string           `json:"type" validate:"required"`
	Length      decimal.Decimal  `json:"length"`
	Width       decimal.Decimal  `json:"width"`
	Height      decimal.Decimal  `json:"height"`
	MaxWeight   *decimal.Decimal `json:"max_weight,omitempty"` // kg
	MaxItems    *int64           `json:"max_items,omitempty"`
}

// MoveStorageUnitRequest cambia el padre de una ubicación ("" = raíz de la bodega).
type MoveStorageUnitRequest struct {
	ParentID string `json:"parent_id"`
}

// StorageUnitResponse salida de una ubicación.
type StorageUnitResponse struct {
	ID          string           `json:"id"`
	WarehouseID string           `json:"warehouse_id"`
	ParentID    string           `json:"parent_id,omitempty"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	Depth       int              `json:"depth"`
	MaxWeight   *decimal.Decimal `json:"max_weight,omitempty"`
	MaxItems    *int64           `json:"max_items,omitempty"`
	IsActive    bool             `json:"is_active"`
}
