// Package ledger implementa el servicio transaccional del ledger de stock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	dledger "github.com/jhoicas/fbs-core/internal/domain/ledger"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Source origen de una recepción.
type Source int

const (
	// SourceInTransit mueve in_transit -> available (suministro despachado).
	SourceInTransit Source = iota
	// SourceExternal suma a available sin tránsito previo (saldo inicial, recepción no planificada).
	SourceExternal
)

// Mutation parámetros comunes de una operación del ledger.
// En Adjust, Quantity es el delta con signo sobre available.
type Mutation struct {
	UnitID         string
	ProductID      string
	Quantity       int64
	Reason         string
	Reference      string
	ActorID        string
	IdempotencyKey string
}

// Result entrada resultante y movimiento registrado. Applied=false indica que la clave de
// idempotencia ya existía y no se modificó nada.
type Result struct {
	Entry    entity.StockEntry
	Movement *entity.StockMovement
	Applied  bool
}

// Service es la única puerta de escritura sobre StockEntry.
type Service struct {
	txRunner  TxRunner
	stockRepo repository.StockRepository
	movRepo   repository.StockMovementRepository
	metrics   ports.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// NewService construye el servicio. stockRepo y movRepo se usan solo para lecturas fuera de tx.
func NewService(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
	metrics ports.Metrics,
	log zerolog.Logger,
) *Service {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Service{
		txRunner:  txRunner,
		stockRepo: stockRepo,
		movRepo:   movRepo,
		metrics:   metrics,
		log:       log.With().Str("component", "ledger").Logger(),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Reserve available -> reserved.
func (s *Service) Reserve(ctx context.Context, m Mutation) (Result, error) {
	return s.apply(ctx, dledger.OpReserve, m)
}

// Release reserved -> available.
func (s *Service) Release(ctx context.Context, m Mutation) (Result, error) {
	return s.apply(ctx, dledger.OpRelease, m)
}

// CommitInTransit registra stock en camino hacia la ubicación.
func (s *Service) CommitInTransit(ctx context.Context, m Mutation) (Result, error) {
	return s.apply(ctx, dledger.OpCommitInTransit, m)
}

// CancelInTransit revierte stock en camino que no llegará.
func (s *Service) CancelInTransit(ctx context.Context, m Mutation) (Result, error) {
	return s.apply(ctx, dledger.OpCancelInTransit, m)
}

// Receive suma a available desde in_transit o desde fuera del sistema.
func (s *Service) Receive(ctx context.Context, src Source, m Mutation) (Result, error) {
	if src == SourceExternal {
		return s.apply(ctx, dledger.OpReceiveExternal, m)
	}
	return s.apply(ctx, dledger.OpReceiveInTransit, m)
}

// Ship retira lo reservado del stock físico.
func (s *Service) Ship(ctx context.Context, m Mutation) (Result, error) {
	return s.apply(ctx, dledger.OpShip, m)
}

// Adjust corrige available con un delta con signo. Reason es obligatorio.
func (s *Service) Adjust(ctx context.Context, m Mutation) (Result, error) {
	if m.Reason == "" {
		return Result{}, fmt.Errorf("%w: ajuste sin motivo", domain.ErrInvalidInput)
	}
	return s.apply(ctx, dledger.OpAdjust, m)
}

// apply ejecuta una operación: bloquea la fila, valida, escribe el movimiento y luego la entrada.
func (s *Service) apply(ctx context.Context, op dledger.Op, m Mutation) (Result, error) {
	if m.UnitID == "" || m.ProductID == "" {
		return Result{}, fmt.Errorf("%w: ubicación y producto requeridos", domain.ErrInvalidInput)
	}
	var res Result
	err := s.txRunner.Run(ctx, func(stockRepo repository.StockRepository, movRepo repository.StockMovementRepository) error {
		// El bloqueo va antes de mirar la clave: dos reintentos concurrentes se serializan aquí.
		current, err := stockRepo.GetForUpdate(ctx, m.UnitID, m.ProductID)
		if err != nil {
			return err
		}
		if m.IdempotencyKey != "" {
			prev, err := movRepo.GetByIdempotencyKey(ctx, m.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				if prev.StorageUnitID != m.UnitID || prev.ProductID != m.ProductID {
					return fmt.Errorf("%w: clave %s usada en otra entrada", domain.ErrConflict, m.IdempotencyKey)
				}
				res = Result{Entry: *current, Movement: prev, Applied: false}
				return nil
			}
		}

		delta, err := dledger.Plan(*current, op, m.Quantity)
		if err != nil {
			return err
		}
		next, err := dledger.Apply(*current, delta)
		if err != nil {
			return err
		}
		now := s.now()
		mov := &entity.StockMovement{
			ID:             uuid.New().String(),
			StorageUnitID:  m.UnitID,
			ProductID:      m.ProductID,
			Cause:          op.Cause(),
			Reason:         m.Reason,
			DeltaAvailable: delta.Available,
			DeltaReserved:  delta.Reserved,
			DeltaInTransit: delta.InTransit,
			Reference:      m.Reference,
			IdempotencyKey: m.IdempotencyKey,
			ActorID:        m.ActorID,
			CreatedAt:      now,
		}
		// Write-ahead: el movimiento se inserta antes que la entrada, ambos en la misma tx.
		if err := movRepo.Create(ctx, mov); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return fmt.Errorf("%w: clave %s", domain.ErrConflict, m.IdempotencyKey)
			}
			return err
		}
		next.Version++
		next.UpdatedAt = now
		if err := stockRepo.Upsert(ctx, &next); err != nil {
			return err
		}
		res = Result{Entry: next, Movement: mov, Applied: true}
		return nil
	})
	if err != nil {
		s.observeFailure(op, m, err)
		return Result{}, fmt.Errorf("ledger %s %s/%s: %w", op, m.UnitID, m.ProductID, err)
	}
	if res.Applied {
		s.metrics.LedgerOperation(string(op), "applied")
		s.log.Debug().
			Str("op", string(op)).
			Str("unit_id", m.UnitID).
			Str("product_id", m.ProductID).
			Int64("qty", m.Quantity).
			Str("reference", m.Reference).
			Msg("movimiento registrado")
	} else {
		s.metrics.LedgerOperation(string(op), "replayed")
	}
	return res, nil
}

func (s *Service) observeFailure(op dledger.Op, m Mutation, err error) {
	switch {
	case errors.Is(err, domain.ErrNegativeQuantity):
		s.metrics.LedgerOperation(string(op), "rejected")
		s.metrics.InvariantViolation("negative_quantity")
		s.log.Error().Err(err).
			Str("op", string(op)).
			Str("unit_id", m.UnitID).
			Str("product_id", m.ProductID).
			Int64("qty", m.Quantity).
			Str("reason", m.Reason).
			Msg("operación rechazada: cantidad negativa")
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidInput):
		s.metrics.LedgerOperation(string(op), "rejected")
	default:
		s.metrics.LedgerOperation(string(op), "error")
		s.log.Warn().Err(err).Str("op", string(op)).Str("unit_id", m.UnitID).Str("product_id", m.ProductID).Msg("operación del ledger fallida")
	}
}
