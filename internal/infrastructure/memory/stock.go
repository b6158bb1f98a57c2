package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

type stockRepo struct {
	s *Store
}

func (r *stockRepo) Get(_ context.Context, unitID, productID string) (*entity.StockEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	k := entity.StockKey{StorageUnitID: unitID, ProductID: productID}
	if e, ok := r.s.stock[k]; ok {
		return &e, nil
	}
	return &entity.StockEntry{StorageUnitID: unitID, ProductID: productID}, nil
}

// GetForUpdate fuera de transacción no bloquea; el ledger siempre usa la versión transaccional.
func (r *stockRepo) GetForUpdate(ctx context.Context, unitID, productID string) (*entity.StockEntry, error) {
	return r.Get(ctx, unitID, productID)
}

func (r *stockRepo) Upsert(_ context.Context, e *entity.StockEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stock[e.Key()] = *e
	return nil
}

func (r *stockRepo) ListByUnits(_ context.Context, unitIDs []string) ([]*entity.StockEntry, error) {
	want := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		want[id] = true
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StockEntry
	for k, e := range r.s.stock {
		if want[k.StorageUnitID] {
			e := e
			out = append(out, &e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (r *stockRepo) ListByProduct(_ context.Context, productID string) ([]*entity.StockEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StockEntry
	for k, e := range r.s.stock {
		if k.ProductID == productID {
			e := e
			out = append(out, &e)
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(list []*entity.StockEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StorageUnitID != list[j].StorageUnitID {
			return list[i].StorageUnitID < list[j].StorageUnitID
		}
		return list[i].ProductID < list[j].ProductID
	})
}

type movementRepo struct {
	s *Store
}

// Create fuera de transacción (seed de datos); el ledger inserta por txMovementRepo.
func (r *movementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.IdempotencyKey != "" {
		if _, dup := r.s.movementKeys[m.IdempotencyKey]; dup {
			return fmt.Errorf("insert movement: %w", domain.ErrDuplicate)
		}
	}
	r.s.movements = append(r.s.movements, *m)
	if m.IdempotencyKey != "" {
		r.s.movementKeys[m.IdempotencyKey] = len(r.s.movements) - 1
	}
	return nil
}

func (r *movementRepo) GetByIdempotencyKey(_ context.Context, key string) (*entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.movementKeys[key]
	if !ok {
		return nil, nil
	}
	m := r.s.movements[i]
	return &m, nil
}

func (r *movementRepo) ListByEntry(_ context.Context, unitID, productID string) ([]*entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StockMovement
	for _, m := range r.s.movements {
		if m.StorageUnitID == unitID && m.ProductID == productID {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StockMovement
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		m := r.s.movements[i]
		if !matchMovement(m, f) {
			continue
		}
		out = append(out, &m)
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func matchMovement(m entity.StockMovement, f repository.MovementFilter) bool {
	switch {
	case f.StorageUnitID != "" && m.StorageUnitID != f.StorageUnitID:
		return false
	case f.ProductID != "" && m.ProductID != f.ProductID:
		return false
	case f.Reference != "" && m.Reference != f.Reference:
		return false
	case f.Cause != "" && m.Cause != f.Cause:
		return false
	case f.From != nil && m.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && m.CreatedAt.After(*f.To):
		return false
	}
	return true
}

func (r *movementRepo) ExistsForProduct(_ context.Context, productID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.movements {
		if m.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(list) {
			return nil
		}
		list = list[offset:]
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
