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

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo pedidos con sus líneas sobre PostgreSQL.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador.
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

const orderColumns = `id, company_id, marketplace_id, external_id, status, shipping_warehouse_id, shipping_wave,
	shipping_date, customer_name, total_price, fulfillment_cost, weight, last_sync, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var o entity.Order
	err := row.Scan(&o.ID, &o.CompanyID, &o.MarketplaceID, &o.ExternalID, &o.Status, &o.ShippingWarehouseID,
		&o.ShippingWave, &o.ShippingDate, &o.CustomerName, &o.TotalPrice, &o.FulfillmentCost, &o.Weight,
		&o.LastSync, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create persiste el pedido y sus líneas en una transacción.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		query := `INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
		_, err := tx.Exec(ctx, query, o.ID, o.CompanyID, o.MarketplaceID, o.ExternalID, o.Status,
			o.ShippingWarehouseID, o.ShippingWave, o.ShippingDate, o.CustomerName, o.TotalPrice,
			o.FulfillmentCost, o.Weight, o.LastSync, o.Version, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}
		return insertOrderItems(ctx, tx, o)
	})
	if err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == "orders_external_uq" {
				return fmt.Errorf("insert order %s/%s: %w", o.MarketplaceID, o.ExternalID, domain.ErrDuplicateExternalID)
			}
			return fmt.Errorf("insert order: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func insertOrderItems(ctx context.Context, tx pgx.Tx, o *entity.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, position, product_id, quantity, price, storage_unit_id, is_processed, unfulfillable)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, o.ID, i, it.ProductID, it.Quantity, it.Price, it.StorageUnitID, it.IsProcessed, it.Unfulfillable)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// GetByID devuelve nil, nil si no existe.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByExternalID busca por identidad en el marketplace.
func (r *OrderRepo) GetByExternalID(ctx context.Context, marketplaceID, externalID string) (*entity.Order, error) {
	return r.getOne(ctx, `WHERE marketplace_id = $1 AND external_id = $2`, marketplaceID, externalID)
}

func (r *OrderRepo) getOne(ctx context.Context, where string, args ...any) (*entity.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// Update compare-and-set sobre version; reescribe las líneas.
func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET status = $3, shipping_warehouse_id = $4, shipping_wave = $5, shipping_date = $6,
				customer_name = $7, total_price = $8, fulfillment_cost = $9, weight = $10, last_sync = $11,
				version = version + 1, updated_at = $12
			WHERE id = $1 AND version = $2`,
			o.ID, o.Version, o.Status, o.ShippingWarehouseID, o.ShippingWave, o.ShippingDate, o.CustomerName,
			o.TotalPrice, o.FulfillmentCost, o.Weight, o.LastSync, o.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update order %s: %w", o.ID, domain.ErrConcurrentUpdate)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
			return err
		}
		return insertOrderItems(ctx, tx, o)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		return fmt.Errorf("update order: %w", err)
	}
	o.Version++
	return nil
}

// ListByStatus pedidos de la empresa en el estado dado, más antiguos primero.
func (r *OrderRepo) ListByStatus(ctx context.Context, companyID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, error) {
	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE company_id = $1 AND status = $2
		ORDER BY created_at LIMIT $3 OFFSET $4`, companyID, status, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var list []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orders []*entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, storage_unit_id, is_processed, unfulfillable
		FROM order_items WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.StorageUnitID,
			&it.IsProcessed, &it.Unfulfillable); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
