package ledger

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Cada operación del ledger usa exactamente una transacción y bloquea una sola fila.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		movRepo repository.StockMovementRepository,
	) error) error
}
