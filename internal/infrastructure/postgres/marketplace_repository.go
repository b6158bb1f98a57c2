package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var (
	_ repository.MarketplaceRepository        = (*MarketplaceRepo)(nil)
	_ repository.ProductMarketplaceRepository = (*ListingRepo)(nil)
)

// MarketplaceRepo integraciones con marketplaces sobre PostgreSQL.
type MarketplaceRepo struct {
	q Querier
}

// NewMarketplaceRepository construye el adaptador.
func NewMarketplaceRepository(q Querier) *MarketplaceRepo {
	return &MarketplaceRepo{q: q}
}

const marketplaceColumns = `id, company_id, name, type, api_url, api_key, is_fbs_enabled, is_connected,
	last_sync, products_count, created_at, updated_at`

func scanMarketplace(row pgx.Row) (*entity.Marketplace, error) {
	var m entity.Marketplace
	err := row.Scan(&m.ID, &m.CompanyID, &m.Name, &m.Type, &m.APIURL, &m.APIKey, &m.IsFBSEnabled, &m.IsConnected,
		&m.LastSync, &m.ProductsCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID devuelve nil, nil si no existe.
func (r *MarketplaceRepo) GetByID(ctx context.Context, id string) (*entity.Marketplace, error) {
	m, err := scanMarketplace(r.q.QueryRow(ctx, `SELECT `+marketplaceColumns+` FROM marketplaces WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get marketplace: %w", err)
	}
	return m, nil
}

// ListConnected integraciones conectadas con FBS habilitado.
func (r *MarketplaceRepo) ListConnected(ctx context.Context) ([]*entity.Marketplace, error) {
	rows, err := r.q.Query(ctx, `SELECT `+marketplaceColumns+` FROM marketplaces
		WHERE is_connected AND is_fbs_enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list marketplaces: %w", err)
	}
	defer rows.Close()
	var list []*entity.Marketplace
	for rows.Next() {
		m, err := scanMarketplace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan marketplace: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// UpdateLastSync avanza last_sync; un valor anterior o igual no cambia nada.
func (r *MarketplaceRepo) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE marketplaces SET last_sync = $2, updated_at = $2
		WHERE id = $1 AND (last_sync IS NULL OR last_sync < $2)`, id, at)
	if err != nil {
		return fmt.Errorf("update last sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrNotFound
		}
	}
	return nil
}

// Upsert da de alta o actualiza una integración. No toca last_sync de una fila existente.
func (r *MarketplaceRepo) Upsert(ctx context.Context, m *entity.Marketplace) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO marketplaces (id, company_id, name, type, api_url, api_key, is_fbs_enabled, is_connected,
			last_sync, products_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, 0, $9, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, api_url = EXCLUDED.api_url, api_key = EXCLUDED.api_key,
			is_fbs_enabled = EXCLUDED.is_fbs_enabled, is_connected = EXCLUDED.is_connected, updated_at = EXCLUDED.updated_at
		WHERE marketplaces.company_id = EXCLUDED.company_id`,
		m.ID, m.CompanyID, m.Name, m.Type, m.APIURL, m.APIKey, m.IsFBSEnabled, m.IsConnected, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert marketplace: %w", err)
	}
	return nil
}

// ── Publicaciones ─────────────────────────────────────────────────────────────

// ListingRepo publicaciones de productos en marketplaces.
type ListingRepo struct {
	q Querier
}

// NewListingRepository construye el adaptador.
func NewListingRepository(q Querier) *ListingRepo {
	return &ListingRepo{q: q}
}

const listingColumns = `id, product_id, marketplace_id, external_id, external_barcode, external_article,
	price, is_active, last_sync, created_at, updated_at`

func scanListing(row pgx.Row) (*entity.ProductMarketplace, error) {
	var pm entity.ProductMarketplace
	err := row.Scan(&pm.ID, &pm.ProductID, &pm.MarketplaceID, &pm.ExternalID, &pm.ExternalBarcode,
		&pm.ExternalArticle, &pm.Price, &pm.IsActive, &pm.LastSync, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// Create persiste la publicación; identidad externa repetida devuelve ErrDuplicateExternalID.
func (r *ListingRepo) Create(ctx context.Context, pm *entity.ProductMarketplace) error {
	query := `INSERT INTO product_marketplaces (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query, pm.ID, pm.ProductID, pm.MarketplaceID, pm.ExternalID, pm.ExternalBarcode,
		pm.ExternalArticle, pm.Price, pm.IsActive, pm.LastSync, pm.CreatedAt, pm.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert product marketplace: %w", domain.ErrDuplicateExternalID)
		}
		return fmt.Errorf("insert product marketplace: %w", err)
	}
	return nil
}

// GetByProduct publicación del producto en el marketplace.
func (r *ListingRepo) GetByProduct(ctx context.Context, productID, marketplaceID string) (*entity.ProductMarketplace, error) {
	return r.getOne(ctx, `WHERE product_id = $1 AND marketplace_id = $2`, productID, marketplaceID)
}

// GetByExternalID publicación por identificador del marketplace.
func (r *ListingRepo) GetByExternalID(ctx context.Context, marketplaceID, externalID string) (*entity.ProductMarketplace, error) {
	return r.getOne(ctx, `WHERE marketplace_id = $1 AND external_id = $2`, marketplaceID, externalID)
}

func (r *ListingRepo) getOne(ctx context.Context, where string, args ...any) (*entity.ProductMarketplace, error) {
	pm, err := scanListing(r.q.QueryRow(ctx, `SELECT `+listingColumns+` FROM product_marketplaces `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product marketplace: %w", err)
	}
	return pm, nil
}

// UpdateIfNewer escribe solo si last_sync avanza; la condición va en el WHERE.
func (r *ListingRepo) UpdateIfNewer(ctx context.Context, pm *entity.ProductMarketplace) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE product_marketplaces SET external_id = $2, external_barcode = $3, external_article = $4,
			price = $5, is_active = $6, last_sync = $7, updated_at = $8
		WHERE id = $1 AND last_sync < $7`,
		pm.ID, pm.ExternalID, pm.ExternalBarcode, pm.ExternalArticle, pm.Price, pm.IsActive, pm.LastSync, pm.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("update product marketplace: %w", domain.ErrDuplicateExternalID)
		}
		return false, fmt.Errorf("update product marketplace: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	cur, err := r.getOne(ctx, `WHERE id = $1`, pm.ID)
	if err != nil {
		return false, err
	}
	if cur == nil {
		return false, domain.ErrNotFound
	}
	return false, nil
}
