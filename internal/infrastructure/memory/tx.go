package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ ledger.TxRunner = (*TxRunner)(nil)

// TxRunner transacción en memoria: bloqueos por fila, escrituras en buffer y commit atómico.
type TxRunner struct {
	s *Store
}

// Run ejecuta fn; si devuelve error las escrituras se descartan.
func (r *TxRunner) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &memTx{
		s:      r.s,
		locked: make(map[entity.StockKey]*sync.Mutex),
		stock:  make(map[entity.StockKey]entity.StockEntry),
		keys:   make(map[string]int),
	}
	defer tx.unlockAll()

	if err := fn(&txStockRepo{tx: tx}, &txMovementRepo{tx: tx}); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	s         *Store
	locked    map[entity.StockKey]*sync.Mutex
	stock     map[entity.StockKey]entity.StockEntry
	movements []entity.StockMovement
	keys      map[string]int
}

func (tx *memTx) lock(k entity.StockKey) {
	if _, ok := tx.locked[k]; ok {
		return
	}
	l := tx.s.rowLock(k)
	l.Lock()
	tx.locked[k] = l
}

func (tx *memTx) unlockAll() {
	for k, l := range tx.locked {
		l.Unlock()
		delete(tx.locked, k)
	}
}

func (tx *memTx) commit() error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, m := range tx.movements {
		if m.IdempotencyKey != "" {
			if _, dup := tx.s.movementKeys[m.IdempotencyKey]; dup {
				return fmt.Errorf("commit transaction: %w", domain.ErrDuplicate)
			}
		}
	}
	for _, m := range tx.movements {
		tx.s.movements = append(tx.s.movements, m)
		if m.IdempotencyKey != "" {
			tx.s.movementKeys[m.IdempotencyKey] = len(tx.s.movements) - 1
		}
	}
	for k, e := range tx.stock {
		tx.s.stock[k] = e
	}
	return nil
}

type txStockRepo struct {
	tx *memTx
}

func (r *txStockRepo) Get(ctx context.Context, unitID, productID string) (*entity.StockEntry, error) {
	k := entity.StockKey{StorageUnitID: unitID, ProductID: productID}
	if e, ok := r.tx.stock[k]; ok {
		return &e, nil
	}
	return r.tx.s.Stock().Get(ctx, unitID, productID)
}

func (r *txStockRepo) GetForUpdate(ctx context.Context, unitID, productID string) (*entity.StockEntry, error) {
	k := entity.StockKey{StorageUnitID: unitID, ProductID: productID}
	r.tx.lock(k)
	return r.Get(ctx, unitID, productID)
}

func (r *txStockRepo) Upsert(_ context.Context, e *entity.StockEntry) error {
	k := e.Key()
	if _, ok := r.tx.locked[k]; !ok {
		return fmt.Errorf("upsert stock %s/%s sin bloqueo de fila", e.StorageUnitID, e.ProductID)
	}
	r.tx.stock[k] = *e
	return nil
}

func (r *txStockRepo) ListByUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error) {
	return r.tx.s.Stock().ListByUnits(ctx, unitIDs)
}

func (r *txStockRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockEntry, error) {
	return r.tx.s.Stock().ListByProduct(ctx, productID)
}

type txMovementRepo struct {
	tx *memTx
}

func (r *txMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	if m.IdempotencyKey != "" {
		if _, ok := r.tx.keys[m.IdempotencyKey]; ok {
			return fmt.Errorf("insert movement: %w", domain.ErrDuplicate)
		}
		prev, err := r.tx.s.Movements().GetByIdempotencyKey(ctx, m.IdempotencyKey)
		if err != nil {
			return err
		}
		if prev != nil {
			return fmt.Errorf("insert movement: %w", domain.ErrDuplicate)
		}
		r.tx.keys[m.IdempotencyKey] = len(r.tx.movements)
	}
	r.tx.movements = append(r.tx.movements, *m)
	return nil
}

func (r *txMovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error) {
	if i, ok := r.tx.keys[key]; ok {
		m := r.tx.movements[i]
		return &m, nil
	}
	return r.tx.s.Movements().GetByIdempotencyKey(ctx, key)
}

func (r *txMovementRepo) ListByEntry(ctx context.Context, unitID, productID string) ([]*entity.StockMovement, error) {
	return r.tx.s.Movements().ListByEntry(ctx, unitID, productID)
}

func (r *txMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	return r.tx.s.Movements().List(ctx, f)
}

func (r *txMovementRepo) ExistsForProduct(ctx context.Context, productID string) (bool, error) {
	return r.tx.s.Movements().ExistsForProduct(ctx, productID)
}
