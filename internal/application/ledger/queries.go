package ledger

import (
	"context"
	"fmt"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	dledger "github.com/jhoicas/fbs-core/internal/domain/ledger"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Snapshot lectura no bloqueante de una entrada. Quien decida con ella debe revalidar al mutar.
func (s *Service) Snapshot(ctx context.Context, unitID, productID string) (entity.StockEntry, error) {
	e, err := s.stockRepo.Get(ctx, unitID, productID)
	if err != nil {
		return entity.StockEntry{}, fmt.Errorf("snapshot %s/%s: %w", unitID, productID, err)
	}
	return *e, nil
}

// SnapshotUnits entradas existentes de un conjunto de ubicaciones.
func (s *Service) SnapshotUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	return s.stockRepo.ListByUnits(ctx, unitIDs)
}

// SnapshotProduct entradas de un producto en todas las ubicaciones.
func (s *Service) SnapshotProduct(ctx context.Context, productID string) ([]*entity.StockEntry, error) {
	return s.stockRepo.ListByProduct(ctx, productID)
}

// History movimientos filtrados, los más recientes primero.
func (s *Service) History(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	return s.movRepo.List(ctx, f)
}

// Replay reconstruye la entrada plegando su historial completo.
func (s *Service) Replay(ctx context.Context, unitID, productID string) (entity.StockEntry, error) {
	movs, err := s.movRepo.ListByEntry(ctx, unitID, productID)
	if err != nil {
		return entity.StockEntry{}, err
	}
	list := make([]entity.StockMovement, 0, len(movs))
	for _, m := range movs {
		list = append(list, *m)
	}
	e, err := dledger.Fold(unitID, productID, list)
	if err != nil {
		s.metrics.InvariantViolation("corrupt_log")
		s.log.Error().Err(err).Str("unit_id", unitID).Str("product_id", productID).Msg("historial inconsistente")
		return entity.StockEntry{}, err
	}
	return e, nil
}

// Verify compara la entrada almacenada con el plegado de su historial.
func (s *Service) Verify(ctx context.Context, unitID, productID string) (entity.StockEntry, error) {
	folded, err := s.Replay(ctx, unitID, productID)
	if err != nil {
		return entity.StockEntry{}, err
	}
	stored, err := s.Snapshot(ctx, unitID, productID)
	if err != nil {
		return entity.StockEntry{}, err
	}
	if !dledger.Equal(folded, stored) {
		s.metrics.InvariantViolation("ledger_mismatch")
		s.log.Error().
			Str("unit_id", unitID).
			Str("product_id", productID).
			Interface("stored", stored).
			Interface("folded", folded).
			Msg("el ledger no coincide con su historial")
		return folded, fmt.Errorf("%w: %s/%s", domain.ErrLedgerMismatch, unitID, productID)
	}
	return stored, nil
}

// Applied indica si ya existe un movimiento con esa clave de idempotencia.
func (s *Service) Applied(ctx context.Context, idempotencyKey string) (bool, error) {
	m, err := s.movRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}
