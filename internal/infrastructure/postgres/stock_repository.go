package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo entradas del ledger sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `storage_unit_id, product_id, available, reserved, in_transit, version, updated_at`

func scanStock(row pgx.Row) (*entity.StockEntry, error) {
	var e entity.StockEntry
	err := row.Scan(&e.StorageUnitID, &e.ProductID, &e.Available, &e.Reserved, &e.InTransit, &e.Version, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get obtiene la entrada; si no existe devuelve una en cero.
func (r *StockRepo) Get(ctx context.Context, unitID, productID string) (*entity.StockEntry, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_entries WHERE storage_unit_id = $1 AND product_id = $2`
	e, err := scanStock(r.q.QueryRow(ctx, query, unitID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockEntry{StorageUnitID: unitID, ProductID: productID}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return e, nil
}

// GetForUpdate crea la fila en cero si falta y la bloquea (SELECT FOR UPDATE).
func (r *StockRepo) GetForUpdate(ctx context.Context, unitID, productID string) (*entity.StockEntry, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_entries (storage_unit_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (storage_unit_id, product_id) DO NOTHING`, unitID, productID)
	if err != nil {
		return nil, fmt.Errorf("init stock: %w", err)
	}
	query := `SELECT ` + stockColumns + ` FROM stock_entries
		WHERE storage_unit_id = $1 AND product_id = $2
		FOR UPDATE`
	e, err := scanStock(r.q.QueryRow(ctx, query, unitID, productID))
	if err != nil {
		return nil, fmt.Errorf("get stock for update: %w", err)
	}
	return e, nil
}

// Upsert inserta o actualiza los tres buckets de la entrada.
func (r *StockRepo) Upsert(ctx context.Context, e *entity.StockEntry) error {
	query := `
		INSERT INTO stock_entries (storage_unit_id, product_id, available, reserved, in_transit, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (storage_unit_id, product_id)
		DO UPDATE SET available = EXCLUDED.available, reserved = EXCLUDED.reserved,
			in_transit = EXCLUDED.in_transit, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, e.StorageUnitID, e.ProductID, e.Available, e.Reserved, e.InTransit, e.Version, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// ListByUnits entradas de las ubicaciones dadas.
func (r *StockRepo) ListByUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + stockColumns + ` FROM stock_entries
		WHERE storage_unit_id = ANY($1::uuid[])
		ORDER BY storage_unit_id, product_id`
	return r.list(ctx, query, unitIDs)
}

// ListByProduct entradas del producto en todas las ubicaciones.
func (r *StockRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockEntry, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_entries
		WHERE product_id = $1
		ORDER BY storage_unit_id`
	return r.list(ctx, query, productID)
}

func (r *StockRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockEntry
	for rows.Next() {
		e, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
