package ports

import (
	"context"
	"time"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// MarketplaceClient puerto de salida hacia la API de un marketplace.
// Se llama siempre fuera de las operaciones del ledger.
type MarketplaceClient interface {
	// FetchOrdersSince devuelve los eventos de pedidos actualizados después de since.
	FetchOrdersSince(ctx context.Context, m *entity.Marketplace, since time.Time) ([]dto.OrderEvent, error)
}
