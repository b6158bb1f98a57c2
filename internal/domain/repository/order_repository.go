package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// OrderRepository puerto de pedidos (agregado con sus líneas).
type OrderRepository interface {
	// Create falla con domain.ErrDuplicateExternalID si (marketplace, external_id) ya existe.
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetByExternalID(ctx context.Context, marketplaceID, externalID string) (*entity.Order, error)
	// Update es compare-and-set sobre Version; incrementa Version o falla con domain.ErrConcurrentUpdate.
	Update(ctx context.Context, order *entity.Order) error
	ListByStatus(ctx context.Context, companyID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, error)
}
