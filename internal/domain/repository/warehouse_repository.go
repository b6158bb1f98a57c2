package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// WarehouseRepository define el puerto de persistencia para Warehouse (DIP).
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *entity.Warehouse) error
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.Warehouse, error)
}

// StorageUnitRepository define el puerto de persistencia para ubicaciones.
type StorageUnitRepository interface {
	Create(ctx context.Context, unit *entity.StorageUnit) error
	GetByID(ctx context.Context, id string) (*entity.StorageUnit, error)
	GetByCode(ctx context.Context, code string) (*entity.StorageUnit, error)
	ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.StorageUnit, error)
	Update(ctx context.Context, unit *entity.StorageUnit) error
}
