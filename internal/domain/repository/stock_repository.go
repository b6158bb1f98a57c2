package repository

import (
	"context"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// StockRepository define el puerto para leer/escribir entradas del ledger por (ubicación, producto).
// Solo el servicio de ledger escribe, siempre dentro de una transacción.
type StockRepository interface {
	// Get devuelve la entrada o una entrada en cero si aún no existe.
	Get(ctx context.Context, unitID, productID string) (*entity.StockEntry, error)
	// GetForUpdate crea la fila en cero si hace falta y la bloquea hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, unitID, productID string) (*entity.StockEntry, error)
	Upsert(ctx context.Context, e *entity.StockEntry) error
	ListByUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error)
	ListByProduct(ctx context.Context, productID string) ([]*entity.StockEntry, error)
}
