package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseType tipo de bodega.
type WarehouseType string

const (
	WarehouseClient      WarehouseType = "client"
	WarehouseFulfillment WarehouseType = "fulfillment"
	WarehouseMarketplace WarehouseType = "marketplace"
)

// Warehouse representa una bodega de la empresa (raíz del árbol de ubicaciones).
type Warehouse struct {
	ID            string
	CompanyID     string
	Name          string
	Type          WarehouseType
	Address       string
	ContactPerson string
	ContactPhone  string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StorageUnitType tipo de ubicación física.
type StorageUnitType string

const (
	UnitShelf  StorageUnitType = "shelf"
	UnitRack   StorageUnitType = "rack"
	UnitPallet StorageUnitType = "pallet"
	UnitBox    StorageUnitType = "box"
	UnitCell   StorageUnitType = "cell"
)

// StorageUnit ubicación direccionable dentro de una bodega. ParentID vacío = cuelga de la bodega.
// MaxWeight (kg) y MaxItems son opcionales; nil = sin límite.
type StorageUnit struct {
	ID          string
	WarehouseID string
	ParentID    string
	Code        string // único global
	Name        string
	Type        StorageUnitType
	Length      decimal.Decimal
	Width       decimal.Decimal
	Height      decimal.Decimal
	MaxWeight   *decimal.Decimal
	MaxItems    *int64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
