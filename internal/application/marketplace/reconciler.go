// Package marketplace traduce los eventos de los marketplaces a pedidos y publicaciones internas.
// La entrega es al menos una vez y sin orden garantizado: la clave (marketplace, external_id)
// identifica el documento y last_sync decide qué evento es el más reciente.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Outcome resultado de ingerir un evento.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
	OutcomeRejected  Outcome = "rejected"
)

const (
	eventStatusCancelled = "cancelled"
	maxCASRetries        = 5
	systemActor          = "marketplace-sync"
)

// OrderProcessor parte del gestor de reservas que usa la ingesta.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, orderID, actorID string) (*entity.Order, error)
	CancelOrder(ctx context.Context, orderID, actorID string) (*entity.Order, error)
}

// Result resultado de IngestOrder.
type Result struct {
	Outcome Outcome
	Order   *entity.Order
	Reason  string
}

// Reconciler aplica eventos de marketplaces de forma idempotente.
type Reconciler struct {
	marketplaces repository.MarketplaceRepository
	orders       repository.OrderRepository
	listings     repository.ProductMarketplaceRepository
	products     repository.ProductRepository
	processor    OrderProcessor
	metrics      ports.Metrics
	log          zerolog.Logger
	now          func() time.Time
}

// NewReconciler construye el reconciliador.
func NewReconciler(
	marketplaces repository.MarketplaceRepository,
	orders repository.OrderRepository,
	listings repository.ProductMarketplaceRepository,
	products repository.ProductRepository,
	processor OrderProcessor,
	metrics ports.Metrics,
	log zerolog.Logger,
) *Reconciler {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Reconciler{
		marketplaces: marketplaces,
		orders:       orders,
		listings:     listings,
		products:     products,
		processor:    processor,
		metrics:      metrics,
		log:          log.With().Str("component", "marketplace").Logger(),
		now:          time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// IngestOrder crea o actualiza el pedido del evento.
//
// Un evento igual o más viejo que el last_sync guardado no cambia nada (duplicate / stale).
// Un pedido ya reservado nunca se vuelve a reservar; uno que sigue en new se reintenta.
// Los eventos inválidos devuelven OutcomeRejected sin error.
func (r *Reconciler) IngestOrder(ctx context.Context, marketplaceID string, ev dto.OrderEvent) (Result, error) {
	mp, err := r.marketplace(ctx, marketplaceID)
	if err != nil {
		return Result{}, err
	}
	if reason := validateOrderEvent(ev); reason != "" {
		return r.rejected("order", mp.ID, ev.ExternalID, reason), nil
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		existing, err := r.orders.GetByExternalID(ctx, mp.ID, ev.ExternalID)
		if err != nil {
			return Result{}, err
		}
		var res Result
		if existing == nil {
			res, err = r.createOrder(ctx, mp, ev)
			if errors.Is(err, domain.ErrDuplicateExternalID) {
				// Otra entrega del mismo evento ganó la carrera: se trata como actualización.
				continue
			}
		} else {
			res, err = r.updateOrder(ctx, existing, ev)
			if errors.Is(err, domain.ErrConcurrentUpdate) {
				continue
			}
		}
		if err != nil {
			r.metrics.IngestOutcome("order", "error")
			return res, err
		}
		if res.Outcome != OutcomeRejected {
			r.metrics.IngestOutcome("order", string(res.Outcome))
		}
		return res, nil
	}
	return Result{}, fmt.Errorf("pedido externo %s: %w", ev.ExternalID, domain.ErrConcurrentUpdate)
}

func (r *Reconciler) createOrder(ctx context.Context, mp *entity.Marketplace, ev dto.OrderEvent) (Result, error) {
	now := r.now()
	o := &entity.Order{
		ID:                  uuid.New().String(),
		CompanyID:           mp.CompanyID,
		MarketplaceID:       mp.ID,
		ExternalID:          ev.ExternalID,
		Status:              entity.OrderNew,
		ShippingWarehouseID: ev.ShippingWarehouseID,
		ShippingDate:        ev.ShippingDate,
		CustomerName:        ev.CustomerName,
		TotalPrice:          ev.TotalPrice,
		LastSync:            ev.UpdatedAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for i, in := range ev.Items {
		productID, reason, err := r.resolveProduct(ctx, mp, in)
		if err != nil {
			return Result{}, err
		}
		if reason != "" {
			return r.rejected("order", mp.ID, ev.ExternalID, reason), nil
		}
		o.Items = append(o.Items, entity.OrderItem{
			ID:        fmt.Sprintf("%s-%d", o.ID, i+1),
			OrderID:   o.ID,
			ProductID: productID,
			Quantity:  in.Quantity,
			Price:     in.Price,
		})
	}
	// Un cancelado que llega antes que la creación deja el pedido registrado y cerrado:
	// la creación atrasada será stale.
	if isCancelled(ev) {
		o.Status = entity.OrderCancelled
	}
	if err := r.orders.Create(ctx, o); err != nil {
		return Result{}, err
	}
	r.log.Info().Str("order_id", o.ID).Str("marketplace_id", mp.ID).Str("external_id", o.ExternalID).
		Str("status", string(o.Status)).Msg("pedido ingresado")

	res := Result{Outcome: OutcomeCreated, Order: o}
	if o.Status != entity.OrderNew {
		return res, nil
	}
	return r.reserve(ctx, res)
}

func (r *Reconciler) updateOrder(ctx context.Context, o *entity.Order, ev dto.OrderEvent) (Result, error) {
	switch {
	case ev.UpdatedAt.Before(o.LastSync):
		r.metrics.StaleEvent(o.MarketplaceID, "order")
		r.log.Debug().Str("order_id", o.ID).Str("external_id", o.ExternalID).
			Time("event_at", ev.UpdatedAt).Time("last_sync", o.LastSync).Msg("evento de pedido atrasado descartado")
		return Result{Outcome: OutcomeStale, Order: o}, nil
	case ev.UpdatedAt.Equal(o.LastSync):
		// Reentrega del mismo evento: solo se reintenta la cancelación o la reserva que quedó pendiente.
		res := Result{Outcome: OutcomeDuplicate, Order: o}
		if isCancelled(ev) {
			return r.cancel(ctx, res)
		}
		if o.Status != entity.OrderNew {
			return res, nil
		}
		return r.reserve(ctx, res)
	}

	o.TotalPrice = ev.TotalPrice
	o.CustomerName = ev.CustomerName
	if ev.ShippingDate != nil {
		o.ShippingDate = ev.ShippingDate
	}
	if o.Status == entity.OrderNew && ev.ShippingWarehouseID != "" {
		o.ShippingWarehouseID = ev.ShippingWarehouseID
	}
	o.LastSync = ev.UpdatedAt
	o.UpdatedAt = r.now()
	if err := r.orders.Update(ctx, o); err != nil {
		return Result{}, err
	}
	res := Result{Outcome: OutcomeUpdated, Order: o}

	if isCancelled(ev) {
		return r.cancel(ctx, res)
	}
	if o.Status != entity.OrderNew {
		return res, nil
	}
	return r.reserve(ctx, res)
}

// cancel aplica la cancelación del marketplace. Un pedido cancelado con reservas aún
// retenidas vuelve a pasar por CancelOrder para liberarlas.
func (r *Reconciler) cancel(ctx context.Context, res Result) (Result, error) {
	o := res.Order
	pending := o.Status == entity.OrderCancelled && o.HasReservations()
	if !pending && !o.Status.CanTransition(entity.OrderCancelled) {
		if o.Status != entity.OrderCancelled {
			r.log.Warn().Str("order_id", o.ID).Str("status", string(o.Status)).Msg("cancelación del marketplace sobre un pedido ya despachado")
			res.Reason = "el pedido ya no admite cancelación"
		}
		return res, nil
	}
	cancelled, err := r.processor.CancelOrder(ctx, o.ID, systemActor)
	if err != nil {
		return res, fmt.Errorf("cancelar pedido %s: %w", o.ID, err)
	}
	res.Order = cancelled
	return res, nil
}

// reserve intenta reservar un pedido nuevo. La falta de stock deja el pedido en new
// con la línea marcada y no es un error de la ingesta.
func (r *Reconciler) reserve(ctx context.Context, res Result) (Result, error) {
	o, err := r.processor.ProcessOrder(ctx, res.Order.ID, systemActor)
	if o != nil {
		res.Order = o
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			res.Reason = "sin stock para reservar"
			return res, nil
		}
		return res, fmt.Errorf("reservar pedido %s: %w", res.Order.ID, err)
	}
	return res, nil
}

func (r *Reconciler) resolveProduct(ctx context.Context, mp *entity.Marketplace, in dto.OrderEventItem) (string, string, error) {
	if in.ProductID != "" {
		p, err := r.products.GetByID(ctx, in.ProductID)
		if err != nil {
			return "", "", err
		}
		if p == nil || p.CompanyID != mp.CompanyID || p.IsDeleted {
			return "", fmt.Sprintf("producto %s desconocido", in.ProductID), nil
		}
		return p.ID, "", nil
	}
	pm, err := r.listings.GetByExternalID(ctx, mp.ID, in.ExternalProductID)
	if err != nil {
		return "", "", err
	}
	if pm == nil {
		return "", fmt.Sprintf("%s: %s", domain.ErrUnknownListing, in.ExternalProductID), nil
	}
	return pm.ProductID, "", nil
}

// IngestListing crea o actualiza la publicación de un producto. Solo gana el evento más reciente.
func (r *Reconciler) IngestListing(ctx context.Context, marketplaceID string, ev dto.ListingEvent) (Outcome, error) {
	mp, err := r.marketplace(ctx, marketplaceID)
	if err != nil {
		return "", err
	}
	if ev.ProductID == "" || ev.ExternalID == "" || ev.UpdatedAt.IsZero() {
		r.rejected("listing", mp.ID, ev.ExternalID, "faltan producto, id externo o fecha")
		return OutcomeRejected, nil
	}
	p, err := r.products.GetByID(ctx, ev.ProductID)
	if err != nil {
		return "", err
	}
	if p == nil || p.CompanyID != mp.CompanyID {
		r.rejected("listing", mp.ID, ev.ExternalID, "producto desconocido")
		return OutcomeRejected, nil
	}

	outcome, err := r.applyListing(ctx, mp, ev)
	if err != nil {
		r.metrics.IngestOutcome("listing", "error")
		return "", err
	}
	r.metrics.IngestOutcome("listing", string(outcome))
	return outcome, nil
}

func (r *Reconciler) applyListing(ctx context.Context, mp *entity.Marketplace, ev dto.ListingEvent) (Outcome, error) {
	existing, err := r.listings.GetByProduct(ctx, ev.ProductID, mp.ID)
	if err != nil {
		return "", err
	}
	now := r.now()
	if existing == nil {
		pm := &entity.ProductMarketplace{
			ID:              uuid.New().String(),
			ProductID:       ev.ProductID,
			MarketplaceID:   mp.ID,
			ExternalID:      ev.ExternalID,
			ExternalBarcode: ev.ExternalBarcode,
			ExternalArticle: ev.ExternalArticle,
			Price:           ev.Price,
			IsActive:        ev.IsActive,
			LastSync:        ev.UpdatedAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err := r.listings.Create(ctx, pm)
		if err == nil {
			return OutcomeCreated, nil
		}
		if !errors.Is(err, domain.ErrDuplicateExternalID) {
			return "", err
		}
		existing, err = r.listings.GetByProduct(ctx, ev.ProductID, mp.ID)
		if err != nil {
			return "", err
		}
		if existing == nil {
			// El id externo pertenece a otro producto.
			r.rejected("listing", mp.ID, ev.ExternalID, "id externo usado por otro producto")
			return OutcomeRejected, nil
		}
	}

	if ev.UpdatedAt.Equal(existing.LastSync) {
		return OutcomeDuplicate, nil
	}
	pm := *existing
	pm.ExternalID = ev.ExternalID
	pm.ExternalBarcode = ev.ExternalBarcode
	pm.ExternalArticle = ev.ExternalArticle
	pm.Price = ev.Price
	pm.IsActive = ev.IsActive
	pm.LastSync = ev.UpdatedAt
	pm.UpdatedAt = now
	applied, err := r.listings.UpdateIfNewer(ctx, &pm)
	if err != nil {
		return "", err
	}
	if !applied {
		r.metrics.StaleEvent(mp.ID, "listing")
		r.log.Debug().Str("product_id", ev.ProductID).Str("external_id", ev.ExternalID).
			Time("event_at", ev.UpdatedAt).Msg("evento de publicación atrasado descartado")
		return OutcomeStale, nil
	}
	return OutcomeUpdated, nil
}

// Authorize verifica que el marketplace pertenezca a la empresa del actor.
func (r *Reconciler) Authorize(ctx context.Context, actor domain.Actor, marketplaceID string) error {
	mp, err := r.marketplace(ctx, marketplaceID)
	if err != nil {
		return err
	}
	if mp.CompanyID != actor.CompanyID {
		return fmt.Errorf("marketplace %s: %w", marketplaceID, domain.ErrNotFound)
	}
	return nil
}

func (r *Reconciler) marketplace(ctx context.Context, id string) (*entity.Marketplace, error) {
	mp, err := r.marketplaces.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mp == nil {
		return nil, fmt.Errorf("marketplace %s: %w", id, domain.ErrNotFound)
	}
	return mp, nil
}

func (r *Reconciler) rejected(kind, marketplaceID, externalID, reason string) Result {
	r.metrics.IngestOutcome(kind, string(OutcomeRejected))
	r.log.Warn().Str("marketplace_id", marketplaceID).Str("external_id", externalID).Str("reason", reason).Msg("evento rechazado")
	return Result{Outcome: OutcomeRejected, Reason: reason}
}

func validateOrderEvent(ev dto.OrderEvent) string {
	if strings.TrimSpace(ev.ExternalID) == "" {
		return "falta external_id"
	}
	if ev.UpdatedAt.IsZero() {
		return "falta updated_at"
	}
	if len(ev.Items) == 0 {
		return "pedido sin líneas"
	}
	for _, it := range ev.Items {
		if it.Quantity <= 0 {
			return fmt.Sprintf("cantidad inválida %d", it.Quantity)
		}
		if it.ProductID == "" && it.ExternalProductID == "" {
			return "línea sin producto"
		}
	}
	return ""
}

func isCancelled(ev dto.OrderEvent) bool {
	return strings.EqualFold(ev.Status, eventStatusCancelled)
}
