// Package shipment agrupa pedidos listos en un envío físico y los despacha del ledger
// exactamente una vez por línea.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Ledger operación del ledger que usa el despacho.
type Ledger interface {
	Ship(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
}

const maxCASRetries = 5

var errNoChange = errors.New("sin cambios")

// Service casos de uso de envíos.
type Service struct {
	shipments  repository.ShipmentRepository
	orders     repository.OrderRepository
	warehouses repository.WarehouseRepository
	units      repository.StorageUnitRepository
	products   repository.ProductRepository
	ledger     Ledger
	log        zerolog.Logger
	now        func() time.Time
}

// NewService construye el servicio.
func NewService(
	shipments repository.ShipmentRepository,
	orders repository.OrderRepository,
	warehouses repository.WarehouseRepository,
	units repository.StorageUnitRepository,
	products repository.ProductRepository,
	l Ledger,
	log zerolog.Logger,
) *Service {
	return &Service{
		shipments:  shipments,
		orders:     orders,
		warehouses: warehouses,
		units:      units,
		products:   products,
		ledger:     l,
		log:        log.With().Str("component", "shipment").Logger(),
		now:        time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create registra un envío en borrador.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in dto.CreateShipmentRequest) (*entity.Shipment, error) {
	if in.WarehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	wh, err := s.warehouses.GetByID(ctx, in.WarehouseID)
	if err != nil {
		return nil, err
	}
	if wh == nil || wh.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("bodega %s: %w", in.WarehouseID, domain.ErrNotFound)
	}
	now := s.now()
	sh := &entity.Shipment{
		ID:               uuid.New().String(),
		CompanyID:        actor.CompanyID,
		WarehouseID:      wh.ID,
		Status:           entity.ShipmentDraft,
		ShipmentDate:     in.ShipmentDate,
		TransportCompany: in.TransportCompany,
		TrackingNumber:   in.TrackingNumber,
		PalletsCount:     in.PalletsCount,
		BoxesCount:       in.BoxesCount,
		TotalWeight:      decimal.Zero,
		Comment:          in.Comment,
		CreatedBy:        actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.shipments.Create(ctx, sh); err != nil {
		return nil, err
	}
	s.log.Info().Str("shipment_id", sh.ID).Str("warehouse_id", wh.ID).Msg("envío creado")
	return sh, nil
}

// Get devuelve el envío si pertenece a la empresa del actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	sh, err := s.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh == nil || (actor.CompanyID != "" && sh.CompanyID != actor.CompanyID) {
		return nil, fmt.Errorf("envío %s: %w", shipmentID, domain.ErrNotFound)
	}
	return sh, nil
}

// Links pedidos vinculados activos.
func (s *Service) Links(ctx context.Context, shipmentID string) ([]*entity.ShipmentOrder, error) {
	return s.shipments.ListLinks(ctx, shipmentID)
}

func editable(sh *entity.Shipment) error {
	if sh.Status != entity.ShipmentDraft && sh.Status != entity.ShipmentPending {
		return fmt.Errorf("%w: envío en %s no admite cambios de pedidos", domain.ErrInvalidTransition, sh.Status)
	}
	return nil
}

// AddOrder vincula un pedido ready_to_ship al envío. No toca el ledger.
func (s *Service) AddOrder(ctx context.Context, actor domain.Actor, shipmentID, orderID string) (*entity.Shipment, error) {
	sh, err := s.Get(ctx, actor, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := editable(sh); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.CompanyID != sh.CompanyID {
		return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
	}
	if o.Status != entity.OrderReadyToShip {
		return nil, fmt.Errorf("%w: pedido en %s, se requiere ready_to_ship", domain.ErrInvalidTransition, o.Status)
	}
	for _, it := range o.Items {
		u, err := s.units.GetByID(ctx, it.StorageUnitID)
		if err != nil {
			return nil, err
		}
		if u == nil || u.WarehouseID != sh.WarehouseID {
			return nil, fmt.Errorf("%w: la línea %s está reservada en otra bodega", domain.ErrInvalidInput, it.ID)
		}
	}
	weight, err := s.orderWeight(ctx, o)
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &entity.ShipmentOrder{
		ID:         uuid.New().String(),
		ShipmentID: sh.ID,
		OrderID:    o.ID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.shipments.LinkOrder(ctx, link); err != nil {
		return nil, err
	}
	err = s.holdOrder(ctx, o.ID)
	var updated *entity.Shipment
	if err == nil {
		updated, err = s.mutate(ctx, actor, sh.ID, func(sh *entity.Shipment) error {
			if err := editable(sh); err != nil {
				return err
			}
			sh.TotalWeight = sh.TotalWeight.Add(weight)
			sh.UpdatedAt = s.now()
			return nil
		})
	}
	if err != nil {
		if uerr := s.shipments.UnlinkOrder(ctx, sh.ID, o.ID); uerr != nil {
			s.log.Error().Err(uerr).Str("shipment_id", sh.ID).Str("order_id", o.ID).Msg("no se pudo deshacer el vínculo")
		}
		return nil, err
	}
	return updated, nil
}

// holdOrder confirma con compare-and-set que el pedido sigue en ready_to_ship tras vincularlo.
// Una cancelación que leyó el pedido antes del vínculo falla su escritura y, al releer, ve el vínculo.
func (s *Service) holdOrder(ctx context.Context, orderID string) error {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
		}
		if o.Status != entity.OrderReadyToShip {
			return fmt.Errorf("%w: pedido en %s, se requiere ready_to_ship", domain.ErrInvalidTransition, o.Status)
		}
		o.UpdatedAt = s.now()
		err = s.orders.Update(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
	}
	return fmt.Errorf("pedido %s: %w", orderID, domain.ErrConcurrentUpdate)
}

// RemoveOrder desvincula un pedido de un envío editable.
func (s *Service) RemoveOrder(ctx context.Context, actor domain.Actor, shipmentID, orderID string) (*entity.Shipment, error) {
	sh, err := s.Get(ctx, actor, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := editable(sh); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
	}
	weight, err := s.orderWeight(ctx, o)
	if err != nil {
		return nil, err
	}
	if err := s.shipments.UnlinkOrder(ctx, sh.ID, o.ID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, sh.ID, func(sh *entity.Shipment) error {
		sh.TotalWeight = decimal.Max(decimal.Zero, sh.TotalWeight.Sub(weight))
		sh.UpdatedAt = s.now()
		return nil
	})
}

// Submit draft -> pending. Requiere al menos un pedido.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	links, err := s.shipments.ListLinks(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: envío sin pedidos", domain.ErrInvalidInput)
	}
	return s.mutate(ctx, actor, shipmentID, func(sh *entity.Shipment) error {
		return sh.Transition(entity.ShipmentPending, s.now())
	})
}

// Approve pending -> approved.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	return s.mutate(ctx, actor, shipmentID, func(sh *entity.Shipment) error {
		return sh.Transition(entity.ShipmentApproved, s.now())
	})
}

// Ship approved -> shipped. Retira del ledger cada línea de cada pedido vinculado una sola vez:
// el vínculo procesado se salta y cada línea lleva clave ship:<envío>:<pedido>:<línea>.
// Si algo falla a mitad, el envío queda approved, ya no cancelable, y repetir Ship completa lo pendiente.
// Repetir Ship sobre un envío ya despachado no hace nada.
func (s *Service) Ship(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	sh, err := s.Get(ctx, actor, shipmentID)
	if err != nil {
		return nil, err
	}
	if sh.Status == entity.ShipmentShipped || sh.Status == entity.ShipmentDelivered {
		return sh, nil
	}
	if !sh.Status.CanTransition(entity.ShipmentShipped) {
		return nil, &domain.TransitionError{Entity: "shipment", From: string(sh.Status), To: string(entity.ShipmentShipped)}
	}
	links, err := s.shipments.ListLinks(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: envío sin pedidos", domain.ErrInvalidInput)
	}
	// Marca de despacho en curso: desde aquí Cancel se rechaza.
	sh, err = s.mutate(ctx, actor, sh.ID, func(sh *entity.Shipment) error {
		if !sh.Status.CanTransition(entity.ShipmentShipped) {
			return &domain.TransitionError{Entity: "shipment", From: string(sh.Status), To: string(entity.ShipmentShipped)}
		}
		if sh.ShippingStarted {
			return errNoChange
		}
		sh.ShippingStarted = true
		sh.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, link := range links {
		if err := s.shipLink(ctx, actor, sh, link); err != nil {
			s.log.Error().Err(err).Str("shipment_id", sh.ID).Str("order_id", link.OrderID).Msg("despacho incompleto, reintentar")
			return nil, err
		}
	}

	shipped, err := s.mutate(ctx, actor, sh.ID, func(sh *entity.Shipment) error {
		if sh.Status == entity.ShipmentShipped {
			return errNoChange
		}
		now := s.now()
		if sh.ShipmentDate == nil {
			sh.ShipmentDate = &now
		}
		return sh.Transition(entity.ShipmentShipped, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("shipment_id", sh.ID).Int("orders", len(links)).Msg("envío despachado")
	return shipped, nil
}

func (s *Service) shipLink(ctx context.Context, actor domain.Actor, sh *entity.Shipment, link *entity.ShipmentOrder) error {
	if !link.IsProcessed {
		o, err := s.orders.GetByID(ctx, link.OrderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("pedido %s: %w", link.OrderID, domain.ErrNotFound)
		}
		for _, it := range o.Items {
			_, err := s.ledger.Ship(ctx, ledger.Mutation{
				UnitID:         it.StorageUnitID,
				ProductID:      it.ProductID,
				Quantity:       it.Quantity,
				Reference:      sh.ID,
				ActorID:        actor.UserID,
				IdempotencyKey: shipKey(sh.ID, o.ID, it.ID),
			})
			if err != nil {
				return fmt.Errorf("despachar línea %s del pedido %s: %w", it.ID, o.ID, err)
			}
		}
		if err := s.shipments.MarkLinkProcessed(ctx, link.ID); err != nil {
			return err
		}
	}
	return s.advanceOrder(ctx, link.OrderID, entity.OrderShipped)
}

// advanceOrder mueve el pedido a `to` si aún no llegó, reintentando ante escrituras concurrentes.
func (s *Service) advanceOrder(ctx context.Context, orderID string, to entity.OrderStatus) error {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
		}
		if o.Status == to {
			return nil
		}
		if err := o.Transition(to, s.now()); err != nil {
			return err
		}
		err = s.orders.Update(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
	}
	return fmt.Errorf("pedido %s: %w", orderID, domain.ErrConcurrentUpdate)
}

// MarkDelivered shipped -> delivered, y los pedidos vinculados con él.
func (s *Service) MarkDelivered(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	sh, err := s.mutate(ctx, actor, shipmentID, func(sh *entity.Shipment) error {
		if sh.Status == entity.ShipmentDelivered {
			return errNoChange
		}
		return sh.Transition(entity.ShipmentDelivered, s.now())
	})
	if err != nil {
		return nil, err
	}
	links, err := s.shipments.ListLinks(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if err := s.advanceOrder(ctx, link.OrderID, entity.OrderDelivered); err != nil {
			// Un pedido devuelto antes de la confirmación de entrega no se toca.
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return nil, err
		}
	}
	return sh, nil
}

// Cancel cancela un envío no despachado y desvincula sus pedidos, que siguen en ready_to_ship.
// No toca el ledger. Se rechaza si algún pedido ya salió del stock o si Ship ya empezó.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, shipmentID string) (*entity.Shipment, error) {
	sh, err := s.Get(ctx, actor, shipmentID)
	if err != nil {
		return nil, err
	}
	if !sh.Status.CanTransition(entity.ShipmentCancelled) {
		return nil, &domain.TransitionError{Entity: "shipment", From: string(sh.Status), To: string(entity.ShipmentCancelled)}
	}
	links, err := s.shipments.ListLinks(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.IsProcessed {
			return nil, fmt.Errorf("%w: el pedido %s ya fue despachado, complete el envío", domain.ErrConflict, link.OrderID)
		}
	}
	cancelled, err := s.mutate(ctx, actor, sh.ID, func(sh *entity.Shipment) error {
		if sh.ShippingStarted {
			return fmt.Errorf("%w: despacho en curso, complete el envío", domain.ErrConflict)
		}
		sh.TotalWeight = decimal.Zero
		return sh.Transition(entity.ShipmentCancelled, s.now())
	})
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if err := s.shipments.UnlinkOrder(ctx, sh.ID, link.OrderID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	s.log.Info().Str("shipment_id", sh.ID).Int("orders", len(links)).Msg("envío cancelado")
	return cancelled, nil
}

func (s *Service) orderWeight(ctx context.Context, o *entity.Order) (decimal.Decimal, error) {
	if o.Weight.IsPositive() {
		return o.Weight, nil
	}
	total := decimal.Zero
	for _, it := range o.Items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		if p == nil {
			continue
		}
		total = total.Add(p.WeightKg().Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total, nil
}

func (s *Service) mutate(ctx context.Context, actor domain.Actor, shipmentID string, fn func(*entity.Shipment) error) (*entity.Shipment, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		sh, err := s.Get(ctx, actor, shipmentID)
		if err != nil {
			return nil, err
		}
		if err := fn(sh); err != nil {
			if errors.Is(err, errNoChange) {
				return sh, nil
			}
			return nil, err
		}
		err = s.shipments.Update(ctx, sh)
		if err == nil {
			return sh, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("envío %s: %w", shipmentID, domain.ErrConcurrentUpdate)
}

func shipKey(shipmentID, orderID, itemID string) string {
	return "ship:" + shipmentID + ":" + orderID + ":" + itemID
}
