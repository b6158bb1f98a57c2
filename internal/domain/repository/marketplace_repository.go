package repository

import (
	"context"
	"time"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// MarketplaceRepository puerto de integraciones con marketplaces.
type MarketplaceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Marketplace, error)
	// ListConnected integraciones conectadas con FBS habilitado.
	ListConnected(ctx context.Context) ([]*entity.Marketplace, error)
	// UpdateLastSync avanza last_sync; nunca lo retrocede.
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
}

// ProductMarketplaceRepository puerto de publicaciones (identidad externa de productos).
type ProductMarketplaceRepository interface {
	// Create falla con domain.ErrDuplicateExternalID si (marketplace, external_id) o (producto, marketplace) existen.
	Create(ctx context.Context, pm *entity.ProductMarketplace) error
	GetByProduct(ctx context.Context, productID, marketplaceID string) (*entity.ProductMarketplace, error)
	GetByExternalID(ctx context.Context, marketplaceID, externalID string) (*entity.ProductMarketplace, error)
	// UpdateIfNewer persiste solo si pm.LastSync es posterior al almacenado; devuelve si aplicó.
	UpdateIfNewer(ctx context.Context, pm *entity.ProductMarketplace) (bool, error)
}
