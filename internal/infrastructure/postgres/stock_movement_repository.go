package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo log inmutable de movimientos (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, storage_unit_id, product_id, cause, reason, delta_available, delta_reserved,
	delta_in_transit, reference, idempotency_key, actor_id, created_at`

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var key *string
	err := row.Scan(&m.ID, &m.StorageUnitID, &m.ProductID, &m.Cause, &m.Reason, &m.DeltaAvailable,
		&m.DeltaReserved, &m.DeltaInTransit, &m.Reference, &key, &m.ActorID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.IdempotencyKey = derefString(key)
	return &m, nil
}

// Create persiste un movimiento. Una clave de idempotencia repetida devuelve ErrDuplicate.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.StorageUnitID, m.ProductID, m.Cause, m.Reason, m.DeltaAvailable, m.DeltaReserved,
		m.DeltaInTransit, m.Reference, nullString(m.IdempotencyKey), m.ActorID, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert movement %s: %w", m.IdempotencyKey, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// GetByIdempotencyKey devuelve nil, nil si no existe.
func (r *StockMovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE idempotency_key = $1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement by key: %w", err)
	}
	return m, nil
}

// ListByEntry movimientos de la entrada en orden de inserción.
func (r *StockMovementRepo) ListByEntry(ctx context.Context, unitID, productID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE storage_unit_id = $1 AND product_id = $2
		ORDER BY seq`
	return r.list(ctx, query, unitID, productID)
}

// List filtra movimientos, más recientes primero.
func (r *StockMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE true`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.StorageUnitID != "" {
		add("storage_unit_id = $%d", f.StorageUnitID)
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.Reference != "" {
		add("reference = $%d", f.Reference)
	}
	if f.Cause != "" {
		add("cause = $%d", string(f.Cause))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	args = append(args, limitOrAll(f.Limit), f.Offset)
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return r.list(ctx, query, args...)
}

// ExistsForProduct indica si el producto tiene algún movimiento.
func (r *StockMovementRepo) ExistsForProduct(ctx context.Context, productID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists movement: %w", err)
	}
	return exists, nil
}

func (r *StockMovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
