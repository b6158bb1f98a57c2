// Package supply implementa la máquina de estados de suministros entrantes:
// draft -> pending -> approved -> in_transit -> received, con cancelación desde cualquier no terminal.
package supply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Ledger operaciones del ledger que usa el pipeline de suministros.
type Ledger interface {
	CommitInTransit(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
	CancelInTransit(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
	Receive(ctx context.Context, src ledger.Source, m ledger.Mutation) (ledger.Result, error)
	SnapshotUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error)
	Applied(ctx context.Context, idempotencyKey string) (bool, error)
}

// maxCASRetries reintentos ante escrituras concurrentes sobre el mismo suministro.
const maxCASRetries = 5

// Service casos de uso de suministros.
type Service struct {
	supplies   repository.SupplyRepository
	warehouses repository.WarehouseRepository
	units      repository.StorageUnitRepository
	products   repository.ProductRepository
	ledger     Ledger
	log        zerolog.Logger
	now        func() time.Time
}

// NewService construye el servicio.
func NewService(
	supplies repository.SupplyRepository,
	warehouses repository.WarehouseRepository,
	units repository.StorageUnitRepository,
	products repository.ProductRepository,
	l Ledger,
	log zerolog.Logger,
) *Service {
	return &Service{
		supplies:   supplies,
		warehouses: warehouses,
		units:      units,
		products:   products,
		ledger:     l,
		log:        log.With().Str("component", "supply").Logger(),
		now:        time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create registra un suministro en borrador.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in dto.CreateSupplyRequest) (*entity.Supply, error) {
	if in.DestinationWarehouseID == "" || in.StorageUnitID == "" || len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	wh, err := s.warehouses.GetByID(ctx, in.DestinationWarehouseID)
	if err != nil {
		return nil, err
	}
	if wh == nil || wh.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("bodega destino %s: %w", in.DestinationWarehouseID, domain.ErrNotFound)
	}
	if in.SourceWarehouseID != "" {
		src, err := s.warehouses.GetByID(ctx, in.SourceWarehouseID)
		if err != nil {
			return nil, err
		}
		if src == nil || src.CompanyID != actor.CompanyID {
			return nil, fmt.Errorf("bodega origen %s: %w", in.SourceWarehouseID, domain.ErrNotFound)
		}
		if src.ID == wh.ID {
			return nil, fmt.Errorf("%w: origen y destino iguales", domain.ErrInvalidInput)
		}
	}
	unit, err := s.units.GetByID(ctx, in.StorageUnitID)
	if err != nil {
		return nil, err
	}
	if unit == nil || unit.WarehouseID != wh.ID {
		return nil, fmt.Errorf("%w: la ubicación %s no pertenece a la bodega destino", domain.ErrInvalidInput, in.StorageUnitID)
	}

	now := s.now()
	sup := &entity.Supply{
		ID:                     uuid.New().String(),
		CompanyID:              actor.CompanyID,
		Name:                   in.Name,
		SourceWarehouseID:      in.SourceWarehouseID,
		DestinationWarehouseID: wh.ID,
		StorageUnitID:          unit.ID,
		Status:                 entity.SupplyDraft,
		SupplyDate:             in.SupplyDate,
		TimeSlot:               in.TimeSlot,
		PalletsCount:           in.PalletsCount,
		BoxesCount:             in.BoxesCount,
		PickupRequired:         in.PickupRequired,
		Comment:                in.Comment,
		CreatedBy:              actor.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, it.Quantity)
		}
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil || p.CompanyID != actor.CompanyID || p.IsDeleted {
			return nil, fmt.Errorf("producto %s: %w", it.ProductID, domain.ErrNotFound)
		}
		sup.Items = append(sup.Items, entity.SupplyItem{
			ID:        uuid.New().String(),
			SupplyID:  sup.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	if err := s.supplies.Create(ctx, sup); err != nil {
		return nil, err
	}
	s.log.Info().Str("supply_id", sup.ID).Int("items", len(sup.Items)).Msg("suministro creado")
	return sup, nil
}

// Get devuelve el suministro si pertenece a la empresa del actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	sup, err := s.supplies.GetByID(ctx, supplyID)
	if err != nil {
		return nil, err
	}
	if sup == nil || (actor.CompanyID != "" && sup.CompanyID != actor.CompanyID) {
		return nil, fmt.Errorf("suministro %s: %w", supplyID, domain.ErrNotFound)
	}
	return sup, nil
}

// Submit draft -> pending.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	return s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		if len(sup.Items) == 0 {
			return fmt.Errorf("%w: suministro sin líneas", domain.ErrInvalidInput)
		}
		return sup.Transition(entity.SupplyPending, s.now())
	})
}

// Approve pending -> approved, previa verificación de capacidad de la ubicación de recepción
// y de todos sus ancestros.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	sup, err := s.Get(ctx, actor, supplyID)
	if err != nil {
		return nil, err
	}
	if !sup.Status.CanTransition(entity.SupplyApproved) {
		return nil, &domain.TransitionError{Entity: "supply", From: string(sup.Status), To: string(entity.SupplyApproved)}
	}
	if err := s.checkCapacity(ctx, sup); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		return sup.Transition(entity.SupplyApproved, s.now())
	})
}

// Dispatch approved -> in_transit. Registra el stock en camino en la ubicación destino.
// Cada línea lleva clave de idempotencia: si falla a mitad, reintentar completa lo que falta.
func (s *Service) Dispatch(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	sup, err := s.Get(ctx, actor, supplyID)
	if err != nil {
		return nil, err
	}
	if !sup.Status.CanTransition(entity.SupplyInTransit) {
		return nil, &domain.TransitionError{Entity: "supply", From: string(sup.Status), To: string(entity.SupplyInTransit)}
	}
	for _, it := range sup.Items {
		_, err := s.ledger.CommitInTransit(ctx, ledger.Mutation{
			UnitID:         sup.StorageUnitID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			Reference:      sup.ID,
			ActorID:        actor.UserID,
			IdempotencyKey: transitKey(sup.ID, it.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("despachar línea %s: %w", it.ID, err)
		}
	}
	out, err := s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		return sup.Transition(entity.SupplyInTransit, s.now())
	})
	if err != nil {
		s.compensateDispatch(ctx, actor, supplyID)
		return nil, err
	}
	return out, nil
}

// compensateDispatch revierte lo comprometido cuando el suministro se canceló durante el despacho.
// Cancel ya pudo revertir algunas líneas: la clave supply-cancel evita hacerlo dos veces.
func (s *Service) compensateDispatch(ctx context.Context, actor domain.Actor, supplyID string) {
	sup, err := s.Get(ctx, actor, supplyID)
	if err != nil || sup.Status != entity.SupplyCancelled {
		return
	}
	if _, err := s.Cancel(ctx, actor, supplyID); err != nil {
		s.log.Error().Err(err).Str("supply_id", supplyID).Msg("no se pudo revertir el despacho")
		return
	}
	s.log.Warn().Str("supply_id", supplyID).Msg("despacho revertido: suministro cancelado en curso")
}

// Receive registra una recepción parcial o total de una línea.
//
// Orden: primero el documento (compare-and-set), luego el ledger con clave receipt:<id>,
// y por último el paso automático a received si todas las líneas llegaron completas.
// Si el ledger falla, la recepción se quita del documento. Repetir un receiptID ya
// registrado no suma de nuevo: solo completa los pasos pendientes.
func (s *Service) Receive(ctx context.Context, actor domain.Actor, itemID string, qty int64, receiptID string) (*entity.Supply, error) {
	owner, err := s.supplies.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if owner == nil || (actor.CompanyID != "" && owner.CompanyID != actor.CompanyID) {
		return nil, fmt.Errorf("línea %s: %w", itemID, domain.ErrNotFound)
	}
	if receiptID == "" {
		receiptID = uuid.New().String()
	}

	var replay bool
	sup, err := s.mutate(ctx, actor, owner.ID, func(sup *entity.Supply) error {
		i := sup.Item(itemID)
		if i < 0 {
			return fmt.Errorf("línea %s: %w", itemID, domain.ErrNotFound)
		}
		it := &sup.Items[i]
		if r, ok := it.Receipt(receiptID); ok {
			if r.Quantity != qty {
				return fmt.Errorf("%w: recepción %s ya registrada con cantidad %d", domain.ErrConflict, receiptID, r.Quantity)
			}
			replay = true
			return errNoChange
		}
		if qty <= 0 {
			return fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, qty)
		}
		if qty > it.Remaining() {
			return fmt.Errorf("%w: línea %s pendiente %d, recibido %d", domain.ErrOverReceipt, it.ID, it.Remaining(), qty)
		}
		if sup.Status != entity.SupplyInTransit {
			return fmt.Errorf("%w: recepción con suministro en %s", domain.ErrInvalidTransition, sup.Status)
		}
		now := s.now()
		it.QuantityReceived += qty
		it.Receipts = append(it.Receipts, entity.SupplyReceipt{
			ID: receiptID, Quantity: qty, ActorID: actor.UserID, ReceivedAt: now,
		})
		sup.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	i := sup.Item(itemID)
	_, err = s.ledger.Receive(ctx, ledger.SourceInTransit, ledger.Mutation{
		UnitID:         sup.StorageUnitID,
		ProductID:      sup.Items[i].ProductID,
		Quantity:       qty,
		Reference:      sup.ID,
		ActorID:        actor.UserID,
		IdempotencyKey: receiptKey(receiptID),
	})
	if err != nil {
		if !replay {
			s.compensateReceipt(ctx, actor, sup.ID, itemID, receiptID)
		}
		return nil, fmt.Errorf("recibir línea %s: %w", itemID, err)
	}
	if !replay {
		s.log.Info().Str("supply_id", sup.ID).Str("item_id", itemID).Int64("qty", qty).Str("receipt_id", receiptID).Msg("recepción registrada")
	}
	return s.completeIfReceived(ctx, actor, sup.ID)
}

// completeIfReceived pasa a received cuando todas las líneas llegaron exactas.
func (s *Service) completeIfReceived(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	return s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		if sup.Status != entity.SupplyInTransit || !sup.AllReceived() {
			return errNoChange
		}
		if err := sup.Transition(entity.SupplyReceived, s.now()); err != nil {
			return err
		}
		s.log.Info().Str("supply_id", sup.ID).Msg("suministro recibido completo")
		return nil
	})
}

func (s *Service) compensateReceipt(ctx context.Context, actor domain.Actor, supplyID, itemID, receiptID string) {
	_, err := s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		it := &sup.Items[sup.Item(itemID)]
		for k, r := range it.Receipts {
			if r.ID == receiptID {
				it.QuantityReceived -= r.Quantity
				it.Receipts = append(it.Receipts[:k], it.Receipts[k+1:]...)
				sup.UpdatedAt = s.now()
				return nil
			}
		}
		return errNoChange
	})
	if err != nil {
		s.log.Error().Err(err).Str("supply_id", supplyID).Str("receipt_id", receiptID).Msg("no se pudo revertir la recepción")
	}
}

// ForceClose acepta como faltante lo que no llegó y cierra el suministro en received.
// El faltante queda registrado como discrepancia y su stock en tránsito se revierte.
func (s *Service) ForceClose(ctx context.Context, actor domain.Actor, supplyID, reason string) (*entity.Supply, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: cierre sin motivo", domain.ErrInvalidInput)
	}
	sup, err := s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		if sup.Status != entity.SupplyInTransit {
			return &domain.TransitionError{Entity: "supply", From: string(sup.Status), To: string(entity.SupplyReceived)}
		}
		now := s.now()
		changed := false
		for i := range sup.Items {
			it := &sup.Items[i]
			short := it.Remaining()
			if short <= 0 {
				continue
			}
			it.Shortfall += short
			sup.Discrepancies = append(sup.Discrepancies, entity.SupplyDiscrepancy{
				ID:        uuid.New().String(),
				SupplyID:  sup.ID,
				ItemID:    it.ID,
				ProductID: it.ProductID,
				Expected:  it.Quantity,
				Received:  it.QuantityReceived,
				Shortfall: short,
				Reason:    reason,
				ActorID:   actor.UserID,
				CreatedAt: now,
			})
			changed = true
		}
		if !changed {
			return errNoChange
		}
		sup.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, it := range sup.Items {
		if it.Shortfall == 0 {
			continue
		}
		_, err := s.ledger.CancelInTransit(ctx, ledger.Mutation{
			UnitID:         sup.StorageUnitID,
			ProductID:      it.ProductID,
			Quantity:       it.Shortfall,
			Reason:         reason,
			Reference:      sup.ID,
			ActorID:        actor.UserID,
			IdempotencyKey: shortfallKey(sup.ID, it.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("revertir faltante de línea %s: %w", it.ID, err)
		}
		s.log.Warn().
			Str("supply_id", sup.ID).
			Str("item_id", it.ID).
			Int64("expected", it.Quantity).
			Int64("received", it.QuantityReceived).
			Int64("shortfall", it.Shortfall).
			Str("reason", reason).
			Msg("faltante aceptado")
	}
	return s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		return sup.Transition(entity.SupplyReceived, s.now())
	})
}

// Cancel cancela el suministro. El stock en camino de las líneas ya despachadas que no se
// recibió se revierte; lo ya recibido queda en el ledger. Repetir Cancel sobre un suministro
// cancelado reintenta las reversiones pendientes.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, supplyID string) (*entity.Supply, error) {
	sup, err := s.mutate(ctx, actor, supplyID, func(sup *entity.Supply) error {
		if sup.Status == entity.SupplyCancelled {
			return errNoChange
		}
		return sup.Transition(entity.SupplyCancelled, s.now())
	})
	if err != nil {
		return nil, err
	}
	for _, it := range sup.Items {
		remaining := it.Remaining()
		if remaining <= 0 {
			continue
		}
		// Un despacho pudo quedar a medias: solo se revierten las líneas que llegaron a comprometerse.
		dispatched, err := s.ledger.Applied(ctx, transitKey(sup.ID, it.ID))
		if err != nil {
			return nil, err
		}
		if !dispatched {
			continue
		}
		_, err = s.ledger.CancelInTransit(ctx, ledger.Mutation{
			UnitID:         sup.StorageUnitID,
			ProductID:      it.ProductID,
			Quantity:       remaining,
			Reason:         "supply_cancelled",
			Reference:      sup.ID,
			ActorID:        actor.UserID,
			IdempotencyKey: cancelKey(sup.ID, it.ID),
		})
		if err != nil {
			return nil, fmt.Errorf("revertir tránsito de línea %s: %w", it.ID, err)
		}
	}
	s.log.Info().Str("supply_id", sup.ID).Msg("suministro cancelado")
	return sup, nil
}

// List suministros de la empresa.
func (s *Service) List(ctx context.Context, actor domain.Actor, limit, offset int) ([]*entity.Supply, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.supplies.ListByCompany(ctx, actor.CompanyID, limit, offset)
}

// errNoChange corta mutate sin escribir.
var errNoChange = errors.New("sin cambios")

// mutate lee, aplica fn y guarda con compare-and-set, reintentando ante escrituras concurrentes.
func (s *Service) mutate(ctx context.Context, actor domain.Actor, supplyID string, fn func(*entity.Supply) error) (*entity.Supply, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		sup, err := s.Get(ctx, actor, supplyID)
		if err != nil {
			return nil, err
		}
		if err := fn(sup); err != nil {
			if errors.Is(err, errNoChange) {
				return sup, nil
			}
			return nil, err
		}
		err = s.supplies.Update(ctx, sup)
		if err == nil {
			return sup, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("suministro %s: %w", supplyID, domain.ErrConcurrentUpdate)
}

func transitKey(supplyID, itemID string) string   { return "transit:" + supplyID + ":" + itemID }
func shortfallKey(supplyID, itemID string) string { return "shortfall:" + supplyID + ":" + itemID }
func cancelKey(supplyID, itemID string) string    { return "supply-cancel:" + supplyID + ":" + itemID }
func receiptKey(receiptID string) string          { return "receipt:" + receiptID }
