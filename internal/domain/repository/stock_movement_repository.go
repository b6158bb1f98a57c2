package repository

import (
	"context"
	"time"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// MovementFilter filtros opcionales para listar movimientos (vacío = sin filtro).
type MovementFilter struct {
	StorageUnitID string
	ProductID     string
	Reference     string
	Cause         entity.MovementCause
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// StockMovementRepository puerto del log inmutable de movimientos. Solo inserta, nunca actualiza.
type StockMovementRepository interface {
	// Create falla con domain.ErrDuplicate si la clave de idempotencia ya existe.
	Create(ctx context.Context, m *entity.StockMovement) error
	// GetByIdempotencyKey devuelve nil, nil si no existe.
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error)
	// ListByEntry lista en orden de inserción (ascendente), para plegar.
	ListByEntry(ctx context.Context, unitID, productID string) ([]*entity.StockMovement, error)
	// List lista los más recientes primero.
	List(ctx context.Context, f MovementFilter) ([]*entity.StockMovement, error)
	ExistsForProduct(ctx context.Context, productID string) (bool, error)
}
