package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ShipmentRepository puerto de envíos y de la tabla puente envío-pedido.
type ShipmentRepository interface {
	Create(ctx context.Context, shipment *entity.Shipment) error
	GetByID(ctx context.Context, id string) (*entity.Shipment, error)
	// Update es compare-and-set sobre Version.
	Update(ctx context.Context, shipment *entity.Shipment) error

	// LinkOrder falla con domain.ErrConflict si el pedido ya tiene un vínculo activo.
	LinkOrder(ctx context.Context, link *entity.ShipmentOrder) error
	UnlinkOrder(ctx context.Context, shipmentID, orderID string) error
	ListLinks(ctx context.Context, shipmentID string) ([]*entity.ShipmentOrder, error)
	MarkLinkProcessed(ctx context.Context, linkID string) error
	GetActiveLinkByOrder(ctx context.Context, orderID string) (*entity.ShipmentOrder, error)
}
