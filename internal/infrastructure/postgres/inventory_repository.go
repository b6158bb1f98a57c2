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

var _ repository.InventoryRepository = (*InventoryRepo)(nil)

// InventoryRepo tomas de inventario con sus ítems.
type InventoryRepo struct {
	q Querier
}

// NewInventoryRepository construye el adaptador.
func NewInventoryRepository(q Querier) *InventoryRepo {
	return &InventoryRepo{q: q}
}

const inventoryColumns = `id, company_id, warehouse_id, name, status, include_reserved, start_date, end_date,
	comment, closing, created_by, version, created_at, updated_at`

func scanInventory(row pgx.Row) (*entity.Inventory, error) {
	var inv entity.Inventory
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.WarehouseID, &inv.Name, &inv.Status, &inv.IncludeReserved,
		&inv.StartDate, &inv.EndDate, &inv.Comment, &inv.Closing, &inv.CreatedBy, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create persiste la toma con sus ítems.
func (r *InventoryRepo) Create(ctx context.Context, inv *entity.Inventory) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		query := `INSERT INTO inventories (` + inventoryColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
		_, err := tx.Exec(ctx, query, inv.ID, inv.CompanyID, inv.WarehouseID, inv.Name, inv.Status,
			inv.IncludeReserved, inv.StartDate, inv.EndDate, inv.Comment, inv.Closing, inv.CreatedBy, inv.Version,
			inv.CreatedAt, inv.UpdatedAt)
		if err != nil {
			return err
		}
		return insertInventoryItems(ctx, tx, inv)
	})
	if err != nil {
		return mapInventoryError("insert inventory", inv, err)
	}
	return nil
}

func insertInventoryItems(ctx context.Context, tx pgx.Tx, inv *entity.Inventory) error {
	if len(inv.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, it := range inv.Items {
		batch.Queue(`
			INSERT INTO inventory_items (id, inventory_id, position, storage_unit_id, product_id, expected_quantity,
				actual_quantity, is_checked, discrepancy_reason, is_applied, checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			it.ID, inv.ID, i, it.StorageUnitID, it.ProductID, it.ExpectedQuantity, it.ActualQuantity,
			it.IsChecked, it.DiscrepancyReason, it.IsApplied, it.CheckedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func mapInventoryError(op string, inv *entity.Inventory, err error) error {
	if isUniqueViolation(err) {
		if constraintName(err) == "inventories_in_progress_uq" {
			return fmt.Errorf("bodega %s ya tiene un inventario en curso: %w", inv.WarehouseID, domain.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	}
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetByID devuelve nil, nil si no existe.
func (r *InventoryRepo) GetByID(ctx context.Context, id string) (*entity.Inventory, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByItemID toma dueña del ítem.
func (r *InventoryRepo) GetByItemID(ctx context.Context, itemID string) (*entity.Inventory, error) {
	return r.getOne(ctx, `WHERE id = (SELECT inventory_id FROM inventory_items WHERE id = $1)`, itemID)
}

// GetInProgressByWarehouse toma en curso de la bodega o nil.
func (r *InventoryRepo) GetInProgressByWarehouse(ctx context.Context, warehouseID string) (*entity.Inventory, error) {
	return r.getOne(ctx, `WHERE warehouse_id = $1 AND status = $2`, warehouseID, entity.InventoryInProgress)
}

func (r *InventoryRepo) getOne(ctx context.Context, where string, args ...any) (*entity.Inventory, error) {
	inv, err := scanInventory(r.q.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventories `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Update compare-and-set sobre version; reescribe los ítems.
func (r *InventoryRepo) Update(ctx context.Context, inv *entity.Inventory) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE inventories SET name = $3, status = $4, include_reserved = $5, start_date = $6, end_date = $7,
				comment = $8, closing = $9, version = version + 1, updated_at = $10
			WHERE id = $1 AND version = $2`,
			inv.ID, inv.Version, inv.Name, inv.Status, inv.IncludeReserved, inv.StartDate, inv.EndDate,
			inv.Comment, inv.Closing, inv.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update inventory %s: %w", inv.ID, domain.ErrConcurrentUpdate)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM inventory_items WHERE inventory_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertInventoryItems(ctx, tx, inv)
	})
	if err != nil {
		return mapInventoryError("update inventory", inv, err)
	}
	inv.Version++
	return nil
}

func (r *InventoryRepo) loadItems(ctx context.Context, inv *entity.Inventory) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, storage_unit_id, product_id, expected_quantity, actual_quantity, is_checked,
			discrepancy_reason, is_applied, checked_at
		FROM inventory_items WHERE inventory_id = $1 ORDER BY position`, inv.ID)
	if err != nil {
		return fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()
	inv.Items = nil
	for rows.Next() {
		it := entity.InventoryItem{InventoryID: inv.ID}
		if err := rows.Scan(&it.ID, &it.StorageUnitID, &it.ProductID, &it.ExpectedQuantity, &it.ActualQuantity,
			&it.IsChecked, &it.DiscrepancyReason, &it.IsApplied, &it.CheckedAt); err != nil {
			return fmt.Errorf("scan inventory item: %w", err)
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}
