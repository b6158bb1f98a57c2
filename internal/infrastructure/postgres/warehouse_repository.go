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

var (
	_ repository.WarehouseRepository   = (*WarehouseRepo)(nil)
	_ repository.StorageUnitRepository = (*StorageUnitRepo)(nil)
)

// WarehouseRepo implementación de WarehouseRepository sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

const warehouseColumns = `id, company_id, name, type, address, contact_person, contact_phone, is_active, created_at, updated_at`

func scanWarehouse(row pgx.Row) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := row.Scan(&w.ID, &w.CompanyID, &w.Name, &w.Type, &w.Address, &w.ContactPerson, &w.ContactPhone,
		&w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create persiste una bodega.
func (r *WarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	query := `INSERT INTO warehouses (` + warehouseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query, w.ID, w.CompanyID, w.Name, w.Type, w.Address, w.ContactPerson, w.ContactPhone,
		w.IsActive, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert warehouse: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert warehouse: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	w, err := scanWarehouse(r.q.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return w, nil
}

// ListByCompany bodegas de la empresa por nombre.
func (r *WarehouseRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Warehouse, error) {
	rows, err := r.q.Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE company_id = $1 ORDER BY name`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()
	var list []*entity.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// ── Ubicaciones ───────────────────────────────────────────────────────────────

// StorageUnitRepo implementación de StorageUnitRepository sobre PostgreSQL.
type StorageUnitRepo struct {
	q Querier
}

// NewStorageUnitRepository construye el adaptador.
func NewStorageUnitRepository(q Querier) *StorageUnitRepo {
	return &StorageUnitRepo{q: q}
}

const unitColumns = `id, warehouse_id, parent_id, code, name, type, length, width, height,
	max_weight, max_items, is_active, created_at, updated_at`

func scanUnit(row pgx.Row) (*entity.StorageUnit, error) {
	var u entity.StorageUnit
	var parent *string
	err := row.Scan(&u.ID, &u.WarehouseID, &parent, &u.Code, &u.Name, &u.Type, &u.Length, &u.Width, &u.Height,
		&u.MaxWeight, &u.MaxItems, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ParentID = derefString(parent)
	return &u, nil
}

// Create persiste una ubicación. Código repetido devuelve ErrDuplicate.
func (r *StorageUnitRepo) Create(ctx context.Context, u *entity.StorageUnit) error {
	query := `INSERT INTO storage_units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query, u.ID, u.WarehouseID, nullString(u.ParentID), u.Code, u.Name, u.Type,
		u.Length, u.Width, u.Height, u.MaxWeight, u.MaxItems, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert storage unit %s: %w", u.Code, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert storage unit: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *StorageUnitRepo) GetByID(ctx context.Context, id string) (*entity.StorageUnit, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByCode busca por código (único global).
func (r *StorageUnitRepo) GetByCode(ctx context.Context, code string) (*entity.StorageUnit, error) {
	return r.getOne(ctx, `WHERE code = $1`, code)
}

func (r *StorageUnitRepo) getOne(ctx context.Context, where string, args ...any) (*entity.StorageUnit, error) {
	u, err := scanUnit(r.q.QueryRow(ctx, `SELECT `+unitColumns+` FROM storage_units `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get storage unit: %w", err)
	}
	return u, nil
}

// ListByWarehouse ubicaciones de la bodega por código.
func (r *StorageUnitRepo) ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.StorageUnit, error) {
	rows, err := r.q.Query(ctx, `SELECT `+unitColumns+` FROM storage_units WHERE warehouse_id = $1 ORDER BY code`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list storage units: %w", err)
	}
	defer rows.Close()
	var list []*entity.StorageUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan storage unit: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Update actualiza padre, datos y límites.
func (r *StorageUnitRepo) Update(ctx context.Context, u *entity.StorageUnit) error {
	query := `
		UPDATE storage_units SET parent_id = $2, name = $3, type = $4, length = $5, width = $6, height = $7,
			max_weight = $8, max_items = $9, is_active = $10, updated_at = $11
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, u.ID, nullString(u.ParentID), u.Name, u.Type, u.Length, u.Width, u.Height,
		u.MaxWeight, u.MaxItems, u.IsActive, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update storage unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
