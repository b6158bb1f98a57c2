package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

var _ ledger.TxRunner = (*TxRunner)(nil)

// maxTxAttempts intentos de una mutación del ledger abortada por deadlock o serialización.
const maxTxAttempts = 3

// TxRunner ejecuta cada mutación del ledger en su propia transacción: la fila de stock se
// bloquea con FOR UPDATE y el movimiento se inserta antes del commit.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run ejecuta fn con repositorios atados a la transacción. Un deadlock entre dos mutaciones
// que tocan las mismas filas en distinto orden se reintenta desde cero; fn no debe tener
// efectos fuera de la transacción.
func (r *TxRunner) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(NewStockRepository(tx), NewStockMovementRepository(tx))
		})
		if err == nil || !isRetryable(err) {
			break
		}
	}
	if err == nil {
		return nil
	}
	if isLockTimeout(err) {
		return fmt.Errorf("%w: fila de stock bloqueada: %w", domain.ErrConcurrentUpdate, err)
	}
	return err
}
