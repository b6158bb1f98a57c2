package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// SupplyRepository puerto de suministros (agregado con líneas, recepciones y discrepancias).
type SupplyRepository interface {
	Create(ctx context.Context, supply *entity.Supply) error
	GetByID(ctx context.Context, id string) (*entity.Supply, error)
	GetByItemID(ctx context.Context, itemID string) (*entity.Supply, error)
	// Update es compare-and-set sobre Version.
	Update(ctx context.Context, supply *entity.Supply) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Supply, error)
}
