// Package reservation convierte la demanda de los pedidos en reservas del ledger.
// La reserva es todo o nada por pedido: si una línea falla se liberan las ya reservadas.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Ledger operaciones del ledger que usa el gestor de reservas.
type Ledger interface {
	Reserve(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
	Release(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
}

const reasonRollback = "reservation_rollback"

// maxCASRetries reintentos ante escrituras concurrentes sobre el mismo pedido.
const maxCASRetries = 5

// Manager gestiona el ciclo de vida de los pedidos hasta quedar listos para enviar.
type Manager struct {
	orders    repository.OrderRepository
	shipments repository.ShipmentRepository
	ledger    Ledger
	router    *Router
	log       zerolog.Logger
	now       func() time.Time
}

// NewManager construye el gestor.
func NewManager(
	orders repository.OrderRepository,
	shipments repository.ShipmentRepository,
	l Ledger,
	router *Router,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		orders:    orders,
		shipments: shipments,
		ledger:    l,
		router:    router,
		log:       log.With().Str("component", "reservation").Logger(),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

type held struct {
	item int
	unit string
}

// ProcessOrder reserva todas las líneas del pedido y lo pasa a processing.
// Reprocesar un pedido ya reservado no hace nada. Si alguna línea no tiene stock, la línea
// queda marcada como unfulfillable, el pedido sigue en new y se devuelve el pedido junto con
// un error que envuelve domain.ErrInsufficientStock.
func (m *Manager) ProcessOrder(ctx context.Context, orderID, actorID string) (*entity.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case entity.OrderProcessing, entity.OrderReadyToShip, entity.OrderShipped, entity.OrderDelivered:
		return o, nil
	case entity.OrderNew:
	default:
		return nil, &domain.TransitionError{Entity: "order", From: string(o.Status), To: string(entity.OrderProcessing)}
	}
	if len(o.Items) == 0 {
		return nil, fmt.Errorf("%w: pedido sin líneas", domain.ErrInvalidInput)
	}

	var reserved []held
	for i := range o.Items {
		it := o.Items[i]
		if it.Quantity <= 0 {
			m.rollback(ctx, o, reserved, actorID)
			return nil, fmt.Errorf("%w: línea %s con cantidad %d", domain.ErrInvalidInput, it.ID, it.Quantity)
		}
		unit, err := m.reserveItem(ctx, o, it, actorID)
		if err != nil {
			m.rollback(ctx, o, reserved, actorID)
			if !errors.Is(err, domain.ErrInsufficientStock) {
				return nil, err
			}
			return m.markUnfulfillable(ctx, o, i, err)
		}
		reserved = append(reserved, held{item: i, unit: unit})
		o.Items[i].StorageUnitID = unit
		o.Items[i].IsProcessed = true
		o.Items[i].Unfulfillable = false
	}

	if err := o.Transition(entity.OrderProcessing, m.now()); err != nil {
		m.rollback(ctx, o, reserved, actorID)
		return nil, err
	}
	if err := m.orders.Update(ctx, o); err != nil {
		// Otro proceso cambió el pedido mientras reservábamos: lo reservado en este intento se devuelve.
		m.rollback(ctx, o, reserved, actorID)
		return nil, fmt.Errorf("guardar pedido %s: %w", o.ID, err)
	}
	m.log.Info().Str("order_id", o.ID).Int("items", len(o.Items)).Msg("pedido reservado")
	return o, nil
}

// reserveItem prueba las ubicaciones candidatas en orden. La foto del router puede estar vieja:
// si el ledger rechaza por stock se intenta la siguiente.
func (m *Manager) reserveItem(ctx context.Context, o *entity.Order, it entity.OrderItem, actorID string) (string, error) {
	candidates, err := m.router.Candidates(ctx, o, it)
	if err != nil {
		return "", err
	}
	for _, unit := range candidates {
		_, err := m.ledger.Reserve(ctx, ledger.Mutation{
			UnitID:    unit,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Reference: o.ID,
			ActorID:   actorID,
		})
		if err == nil {
			return unit, nil
		}
		if !errors.Is(err, domain.ErrInsufficientStock) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: producto %s, cantidad %d", domain.ErrInsufficientStock, it.ProductID, it.Quantity)
}

// rollback libera las reservas hechas en este intento. Un fallo aquí deja stock reservado
// sin pedido que lo respalde, por eso se registra con severidad alta.
func (m *Manager) rollback(ctx context.Context, o *entity.Order, reserved []held, actorID string) {
	for _, h := range reserved {
		it := o.Items[h.item]
		_, err := m.ledger.Release(ctx, ledger.Mutation{
			UnitID:    h.unit,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Reason:    reasonRollback,
			Reference: o.ID,
			ActorID:   actorID,
		})
		if err != nil {
			m.log.Error().Err(err).
				Str("order_id", o.ID).
				Str("unit_id", h.unit).
				Str("product_id", it.ProductID).
				Int64("qty", it.Quantity).
				Msg("no se pudo liberar la reserva al revertir")
		}
	}
	o.ClearReservations()
}

func (m *Manager) markUnfulfillable(ctx context.Context, o *entity.Order, item int, cause error) (*entity.Order, error) {
	o.Items[item].Unfulfillable = true
	o.UpdatedAt = m.now()
	if err := m.orders.Update(ctx, o); err != nil {
		return nil, errors.Join(cause, fmt.Errorf("guardar pedido %s: %w", o.ID, err))
	}
	m.log.Warn().
		Str("order_id", o.ID).
		Str("item_id", o.Items[item].ID).
		Str("product_id", o.Items[item].ProductID).
		Msg("línea sin stock, pedido pendiente de reintento")
	return o, fmt.Errorf("pedido %s: %w", o.ID, cause)
}

// CancelOrder cancela el pedido y libera sus reservas.
//
// Primero se fija el estado cancelled con compare-and-set, comprobando en cada intento que
// el pedido no esté vinculado a un envío; desde ahí AddOrder lo rechaza. Después se liberan
// las reservas con clave cancel:<pedido>:<línea>. Si la liberación falla a mitad, repetir
// CancelOrder sobre el pedido cancelado completa lo pendiente sin liberar dos veces.
func (m *Manager) CancelOrder(ctx context.Context, orderID, actorID string) (*entity.Order, error) {
	o, err := m.claimCancel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, it := range o.Items {
		if !it.IsProcessed {
			continue
		}
		_, err := m.ledger.Release(ctx, ledger.Mutation{
			UnitID:         it.StorageUnitID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			Reason:         "order_cancelled",
			Reference:      o.ID,
			ActorID:        actorID,
			IdempotencyKey: fmt.Sprintf("cancel:%s:%s", o.ID, it.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("liberar línea %s: %w", it.ID, err)
		}
	}
	o, err = m.clearReservations(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("order_id", o.ID).Msg("pedido cancelado")
	return o, nil
}

// claimCancel pasa el pedido a cancelled conservando las reservas en el documento.
// Un pedido ya cancelado con reservas pendientes de liberar se devuelve tal cual.
func (m *Manager) claimCancel(ctx context.Context, orderID string) (*entity.Order, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		o, err := m.load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == entity.OrderCancelled && o.HasReservations() {
			return o, nil
		}
		if !o.Status.CanTransition(entity.OrderCancelled) {
			return nil, &domain.TransitionError{Entity: "order", From: string(o.Status), To: string(entity.OrderCancelled)}
		}
		link, err := m.shipments.GetActiveLinkByOrder(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if link != nil {
			return nil, fmt.Errorf("%w: el pedido está en el envío %s", domain.ErrConflict, link.ShipmentID)
		}
		if err := o.Transition(entity.OrderCancelled, m.now()); err != nil {
			return nil, err
		}
		err = m.orders.Update(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, fmt.Errorf("guardar pedido %s: %w", o.ID, err)
		}
	}
	return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrConcurrentUpdate)
}

// clearReservations quita del documento las reservas ya liberadas.
func (m *Manager) clearReservations(ctx context.Context, orderID string) (*entity.Order, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		o, err := m.load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !o.HasReservations() {
			return o, nil
		}
		o.ClearReservations()
		o.UpdatedAt = m.now()
		err = m.orders.Update(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, fmt.Errorf("guardar pedido %s: %w", o.ID, err)
		}
	}
	return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrConcurrentUpdate)
}

// MarkReadyToShip processing -> ready_to_ship. Exige todas las reservas vigentes.
func (m *Manager) MarkReadyToShip(ctx context.Context, orderID string) (*entity.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == entity.OrderProcessing && !o.Reserved() {
		return nil, fmt.Errorf("%w: pedido sin reservas completas", domain.ErrConflict)
	}
	return m.transition(ctx, o, entity.OrderReadyToShip)
}

// MarkDelivered shipped -> delivered.
func (m *Manager) MarkDelivered(ctx context.Context, orderID string) (*entity.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, o, entity.OrderDelivered)
}

// MarkReturned shipped|delivered -> returned. La devolución física entra como suministro
// o ajuste; este cambio de estado no toca el ledger.
func (m *Manager) MarkReturned(ctx context.Context, orderID string) (*entity.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return m.transition(ctx, o, entity.OrderReturned)
}

// Get devuelve el pedido.
func (m *Manager) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	return m.load(ctx, orderID)
}

func (m *Manager) transition(ctx context.Context, o *entity.Order, to entity.OrderStatus) (*entity.Order, error) {
	from := o.Status
	if err := o.Transition(to, m.now()); err != nil {
		return nil, err
	}
	if err := m.orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("guardar pedido %s: %w", o.ID, err)
	}
	m.log.Info().Str("order_id", o.ID).Str("from", string(from)).Str("to", string(to)).Msg("estado de pedido")
	return o, nil
}

func (m *Manager) load(ctx context.Context, orderID string) (*entity.Order, error) {
	o, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
	}
	return o, nil
}
