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

var _ repository.ShipmentRepository = (*ShipmentRepo)(nil)

// ShipmentRepo envíos y vínculos envío-pedido.
type ShipmentRepo struct {
	q Querier
}

// NewShipmentRepository construye el adaptador.
func NewShipmentRepository(q Querier) *ShipmentRepo {
	return &ShipmentRepo{q: q}
}

const shipmentColumns = `id, company_id, warehouse_id, status, shipment_date, transport_company, tracking_number,
	pallets_count, boxes_count, total_weight, comment, shipping_started, created_by, version, created_at, updated_at`

const linkColumns = `id, shipment_id, order_id, is_processed, is_active, created_at, updated_at`

func scanShipment(row pgx.Row) (*entity.Shipment, error) {
	var s entity.Shipment
	err := row.Scan(&s.ID, &s.CompanyID, &s.WarehouseID, &s.Status, &s.ShipmentDate, &s.TransportCompany,
		&s.TrackingNumber, &s.PalletsCount, &s.BoxesCount, &s.TotalWeight, &s.Comment, &s.ShippingStarted, &s.CreatedBy,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanLink(row pgx.Row) (*entity.ShipmentOrder, error) {
	var l entity.ShipmentOrder
	if err := row.Scan(&l.ID, &l.ShipmentID, &l.OrderID, &l.IsProcessed, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// Create persiste un envío.
func (r *ShipmentRepo) Create(ctx context.Context, s *entity.Shipment) error {
	query := `INSERT INTO shipments (` + shipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query, s.ID, s.CompanyID, s.WarehouseID, s.Status, s.ShipmentDate, s.TransportCompany,
		s.TrackingNumber, s.PalletsCount, s.BoxesCount, s.TotalWeight, s.Comment, s.ShippingStarted, s.CreatedBy,
		s.Version, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert shipment: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *ShipmentRepo) GetByID(ctx context.Context, id string) (*entity.Shipment, error) {
	s, err := scanShipment(r.q.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	return s, nil
}

// Update compare-and-set sobre version.
func (r *ShipmentRepo) Update(ctx context.Context, s *entity.Shipment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE shipments SET status = $3, shipment_date = $4, transport_company = $5, tracking_number = $6,
			pallets_count = $7, boxes_count = $8, total_weight = $9, comment = $10,
			shipping_started = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version, s.Status, s.ShipmentDate, s.TransportCompany, s.TrackingNumber,
		s.PalletsCount, s.BoxesCount, s.TotalWeight, s.Comment, s.ShippingStarted, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update shipment %s: %w", s.ID, domain.ErrConcurrentUpdate)
	}
	s.Version++
	return nil
}

// LinkOrder vincula el pedido; el índice parcial sobre vínculos activos rechaza un segundo envío.
func (r *ShipmentRepo) LinkOrder(ctx context.Context, l *entity.ShipmentOrder) error {
	_, err := r.q.Exec(ctx, `INSERT INTO shipment_orders (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.ShipmentID, l.OrderID, l.IsProcessed, l.IsActive, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pedido %s ya está en otro envío: %w", l.OrderID, domain.ErrConflict)
		}
		return fmt.Errorf("link order: %w", err)
	}
	return nil
}

// UnlinkOrder desactiva el vínculo si aún no fue despachado.
func (r *ShipmentRepo) UnlinkOrder(ctx context.Context, shipmentID, orderID string) error {
	var processed bool
	err := r.q.QueryRow(ctx, `
		UPDATE shipment_orders SET is_active = (is_processed), updated_at = now()
		WHERE shipment_id = $1 AND order_id = $2 AND is_active
		RETURNING is_processed`, shipmentID, orderID).Scan(&processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("unlink order: %w", err)
	}
	if processed {
		return fmt.Errorf("pedido %s ya despachado: %w", orderID, domain.ErrConflict)
	}
	return nil
}

// ListLinks vínculos activos del envío en orden de alta.
func (r *ShipmentRepo) ListLinks(ctx context.Context, shipmentID string) ([]*entity.ShipmentOrder, error) {
	rows, err := r.q.Query(ctx, `SELECT `+linkColumns+` FROM shipment_orders
		WHERE shipment_id = $1 AND is_active ORDER BY created_at, order_id`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()
	var list []*entity.ShipmentOrder
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// MarkLinkProcessed marca el pedido del vínculo como despachado.
func (r *ShipmentRepo) MarkLinkProcessed(ctx context.Context, linkID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE shipment_orders SET is_processed = TRUE, updated_at = now() WHERE id = $1`, linkID)
	if err != nil {
		return fmt.Errorf("mark link processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetActiveLinkByOrder vínculo activo del pedido o nil.
func (r *ShipmentRepo) GetActiveLinkByOrder(ctx context.Context, orderID string) (*entity.ShipmentOrder, error) {
	l, err := scanLink(r.q.QueryRow(ctx, `SELECT `+linkColumns+` FROM shipment_orders
		WHERE order_id = $1 AND is_active`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active link: %w", err)
	}
	return l, nil
}
