package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ repository.SupplyRepository = (*SupplyRepo)(nil)

// SupplyRepo suministros con líneas, recepciones y discrepancias.
type SupplyRepo struct {
	q Querier
}

// NewSupplyRepository construye el adaptador.
func NewSupplyRepository(q Querier) *SupplyRepo {
	return &SupplyRepo{q: q}
}

const supplyColumns = `id, company_id, name, source_warehouse_id, destination_warehouse_id, storage_unit_id, status,
	supply_date, time_slot, pallets_count, boxes_count, pickup_required, comment, created_by, version, created_at, updated_at`

func scanSupply(row pgx.Row) (*entity.Supply, error) {
	var s entity.Supply
	err := row.Scan(&s.ID, &s.CompanyID, &s.Name, &s.SourceWarehouseID, &s.DestinationWarehouseID, &s.StorageUnitID,
		&s.Status, &s.SupplyDate, &s.TimeSlot, &s.PalletsCount, &s.BoxesCount, &s.PickupRequired, &s.Comment,
		&s.CreatedBy, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create persiste el suministro con sus hijos.
func (r *SupplyRepo) Create(ctx context.Context, s *entity.Supply) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		query := `INSERT INTO supplies (` + supplyColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
		_, err := tx.Exec(ctx, query, s.ID, s.CompanyID, s.Name, s.SourceWarehouseID, s.DestinationWarehouseID,
			s.StorageUnitID, s.Status, s.SupplyDate, s.TimeSlot, s.PalletsCount, s.BoxesCount, s.PickupRequired,
			s.Comment, s.CreatedBy, s.Version, s.CreatedAt, s.UpdatedAt)
		if err != nil {
			return err
		}
		return insertSupplyChildren(ctx, tx, s)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert supply: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert supply: %w", err)
	}
	return nil
}

func insertSupplyChildren(ctx context.Context, tx pgx.Tx, s *entity.Supply) error {
	batch := &pgx.Batch{}
	for i, it := range s.Items {
		batch.Queue(`
			INSERT INTO supply_items (id, supply_id, position, product_id, quantity, quantity_received, shortfall)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, s.ID, i, it.ProductID, it.Quantity, it.QuantityReceived, it.Shortfall)
		for _, rc := range it.Receipts {
			batch.Queue(`
				INSERT INTO supply_receipts (id, item_id, quantity, actor_id, received_at)
				VALUES ($1, $2, $3, $4, $5)`,
				rc.ID, it.ID, rc.Quantity, rc.ActorID, rc.ReceivedAt)
		}
	}
	for _, d := range s.Discrepancies {
		batch.Queue(`
			INSERT INTO supply_discrepancies (id, supply_id, item_id, product_id, expected, received, shortfall, reason, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			d.ID, s.ID, d.ItemID, d.ProductID, d.Expected, d.Received, d.Shortfall, d.Reason, d.ActorID, d.CreatedAt)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

// GetByID devuelve nil, nil si no existe.
func (r *SupplyRepo) GetByID(ctx context.Context, id string) (*entity.Supply, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByItemID suministro dueño de la línea.
func (r *SupplyRepo) GetByItemID(ctx context.Context, itemID string) (*entity.Supply, error) {
	return r.getOne(ctx, `WHERE id = (SELECT supply_id FROM supply_items WHERE id = $1)`, itemID)
}

func (r *SupplyRepo) getOne(ctx context.Context, where string, args ...any) (*entity.Supply, error) {
	s, err := scanSupply(r.q.QueryRow(ctx, `SELECT `+supplyColumns+` FROM supplies `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get supply: %w", err)
	}
	if err := r.loadChildren(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Update compare-and-set sobre version; reescribe los hijos.
func (r *SupplyRepo) Update(ctx context.Context, s *entity.Supply) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE supplies SET name = $3, status = $4, supply_date = $5, time_slot = $6, pallets_count = $7,
				boxes_count = $8, pickup_required = $9, comment = $10, version = version + 1, updated_at = $11
			WHERE id = $1 AND version = $2`,
			s.ID, s.Version, s.Name, s.Status, s.SupplyDate, s.TimeSlot, s.PalletsCount, s.BoxesCount,
			s.PickupRequired, s.Comment, s.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update supply %s: %w", s.ID, domain.ErrConcurrentUpdate)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM supply_discrepancies WHERE supply_id = $1`, s.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM supply_items WHERE supply_id = $1`, s.ID); err != nil {
			return err
		}
		return insertSupplyChildren(ctx, tx, s)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		return fmt.Errorf("update supply: %w", err)
	}
	s.Version++
	return nil
}

// ListByCompany suministros de la empresa, más recientes primero.
func (r *SupplyRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Supply, error) {
	rows, err := r.q.Query(ctx, `SELECT `+supplyColumns+` FROM supplies
		WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, companyID, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list supplies: %w", err)
	}
	var list []*entity.Supply
	for rows.Next() {
		s, err := scanSupply(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan supply: %w", err)
		}
		list = append(list, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range list {
		if err := r.loadChildren(ctx, s); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *SupplyRepo) loadChildren(ctx context.Context, s *entity.Supply) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, product_id, quantity, quantity_received, shortfall
		FROM supply_items WHERE supply_id = $1 ORDER BY position`, s.ID)
	if err != nil {
		return fmt.Errorf("list supply items: %w", err)
	}
	s.Items = nil
	for rows.Next() {
		it := entity.SupplyItem{SupplyID: s.ID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.QuantityReceived, &it.Shortfall); err != nil {
			rows.Close()
			return fmt.Errorf("scan supply item: %w", err)
		}
		s.Items = append(s.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT r.item_id, r.id, r.quantity, r.actor_id, r.received_at
		FROM supply_receipts r JOIN supply_items i ON i.id = r.item_id
		WHERE i.supply_id = $1 ORDER BY r.received_at, r.id`, s.ID)
	if err != nil {
		return fmt.Errorf("list supply receipts: %w", err)
	}
	for rows.Next() {
		var itemID string
		var rc entity.SupplyReceipt
		if err := rows.Scan(&itemID, &rc.ID, &rc.Quantity, &rc.ActorID, &rc.ReceivedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan supply receipt: %w", err)
		}
		if i := s.Item(itemID); i >= 0 {
			s.Items[i].Receipts = append(s.Items[i].Receipts, rc)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT id, item_id, product_id, expected, received, shortfall, reason, actor_id, created_at
		FROM supply_discrepancies WHERE supply_id = $1 ORDER BY created_at, id`, s.ID)
	if err != nil {
		return fmt.Errorf("list supply discrepancies: %w", err)
	}
	defer rows.Close()
	s.Discrepancies = nil
	for rows.Next() {
		d := entity.SupplyDiscrepancy{SupplyID: s.ID}
		if err := rows.Scan(&d.ID, &d.ItemID, &d.ProductID, &d.Expected, &d.Received, &d.Shortfall,
			&d.Reason, &d.ActorID, &d.CreatedAt); err != nil {
			return fmt.Errorf("scan supply discrepancy: %w", err)
		}
		s.Discrepancies = append(s.Discrepancies, d)
	}
	return rows.Err()
}
