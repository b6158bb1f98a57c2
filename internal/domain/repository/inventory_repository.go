package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// InventoryRepository puerto de tomas de inventario.
type InventoryRepository interface {
	Create(ctx context.Context, inv *entity.Inventory) error
	GetByID(ctx context.Context, id string) (*entity.Inventory, error)
	GetByItemID(ctx context.Context, itemID string) (*entity.Inventory, error)
	// Update es compare-and-set sobre Version.
	Update(ctx context.Context, inv *entity.Inventory) error
	// GetInProgressByWarehouse devuelve la toma en curso de la bodega o nil.
	GetInProgressByWarehouse(ctx context.Context, warehouseID string) (*entity.Inventory, error)
}
