package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/infrastructure/postgres"
	"github.com/jhoicas/fbs-core/pkg/config"
)

// Pruebas de integración: requieren FBS_TEST_DATABASE_URL apuntando a una base desechable.
func newStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("FBS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FBS_TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	return postgres.NewStore(pool), pool
}

type seed struct {
	warehouse *entity.Warehouse
	unit      *entity.StorageUnit
	product   *entity.Product
}

func seedCatalog(t *testing.T, s *postgres.Store) seed {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	company := "company-" + uuid.NewString()[:8]
	wh := &entity.Warehouse{ID: uuid.NewString(), CompanyID: company, Name: "Central", Type: entity.WarehouseFulfillment,
		IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Warehouses().Create(ctx, wh))
	u := &entity.StorageUnit{ID: uuid.NewString(), WarehouseID: wh.ID, Code: "A-" + uuid.NewString()[:8], Type: entity.UnitShelf,
		IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.StorageUnits().Create(ctx, u))
	p := &entity.Product{ID: uuid.NewString(), CompanyID: company, Name: "Crema", Article: "ART-1",
		Weight: decimal.NewFromInt(250), IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Products().Create(ctx, p))
	return seed{warehouse: wh, unit: u, product: p}
}

func newLedger(s *postgres.Store) *ledger.Service {
	return ledger.NewService(s.TxRunner(), s.Stock(), s.Movements(), ports.NopMetrics{}, zerolog.Nop())
}

// ── Ledger ────────────────────────────────────────────────────────────────────

func TestLedger_ReservaConcurrenteNoSobrevende(t *testing.T) {
	s, _ := newStore(t)
	sd := seedCatalog(t, s)
	l := newLedger(s)
	ctx := context.Background()

	_, err := l.Receive(ctx, ledger.SourceExternal, ledger.Mutation{UnitID: sd.unit.ID, ProductID: sd.product.ID, Quantity: 5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(ctx, ledger.Mutation{UnitID: sd.unit.ID, ProductID: sd.product.ID, Quantity: 1})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	e, err := l.Verify(ctx, sd.unit.ID, sd.product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.Available)
	assert.Equal(t, int64(5), e.Reserved)
}

func TestLedger_ClaveDeIdempotenciaRepetida(t *testing.T) {
	s, _ := newStore(t)
	sd := seedCatalog(t, s)
	l := newLedger(s)
	ctx := context.Background()
	m := ledger.Mutation{UnitID: sd.unit.ID, ProductID: sd.product.ID, Quantity: 3, IdempotencyKey: "receipt:" + uuid.NewString()}

	first, err := l.Receive(ctx, ledger.SourceExternal, m)
	require.NoError(t, err)
	again, err := l.Receive(ctx, ledger.SourceExternal, m)
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, again.Applied)
	assert.Equal(t, int64(3), again.Entry.Available)
}

func TestProduct_BorradoFisicoReferenciado(t *testing.T) {
	s, _ := newStore(t)
	sd := seedCatalog(t, s)
	ctx := context.Background()

	_, err := newLedger(s).Receive(ctx, ledger.SourceExternal, ledger.Mutation{UnitID: sd.unit.ID, ProductID: sd.product.ID, Quantity: 1})
	require.NoError(t, err)

	err = s.Products().Delete(ctx, sd.product.ID)
	assert.ErrorIs(t, err, domain.ErrReferenced)
}

// ── Documentos ────────────────────────────────────────────────────────────────

func TestOrder_UpdateCompareAndSet(t *testing.T) {
	s, _ := newStore(t)
	sd := seedCatalog(t, s)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &entity.Order{ID: uuid.NewString(), CompanyID: sd.warehouse.CompanyID, MarketplaceID: "mp-1",
		ExternalID: uuid.NewString(), Status: entity.OrderNew, LastSync: now, CreatedAt: now, UpdatedAt: now,
		Items: []entity.OrderItem{{ID: uuid.NewString(), ProductID: sd.product.ID, Quantity: 2}}}
	require.NoError(t, s.Orders().Create(ctx, o))

	dup := *o
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.Orders().Create(ctx, &dup), domain.ErrDuplicateExternalID)

	a, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	b, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, a.Items, 1)

	a.Items[0].IsProcessed = true
	a.Items[0].StorageUnitID = sd.unit.ID
	require.NoError(t, s.Orders().Update(ctx, a))
	assert.ErrorIs(t, s.Orders().Update(ctx, b), domain.ErrConcurrentUpdate)

	got, err := s.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.Items[0].IsProcessed)
}

func TestShipment_PedidoEnUnSoloEnvioActivo(t *testing.T) {
	s, _ := newStore(t)
	sd := seedCatalog(t, s)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &entity.Order{ID: uuid.NewString(), CompanyID: sd.warehouse.CompanyID, Status: entity.OrderReadyToShip,
		LastSync: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Orders().Create(ctx, o))

	newShipment := func() *entity.Shipment {
		sh := &entity.Shipment{ID: uuid.NewString(), CompanyID: sd.warehouse.CompanyID, WarehouseID: sd.warehouse.ID,
			Status: entity.ShipmentDraft, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Shipments().Create(ctx, sh))
		return sh
	}
	first, second := newShipment(), newShipment()

	link := func(sh *entity.Shipment) error {
		return s.Shipments().LinkOrder(ctx, &entity.ShipmentOrder{ID: uuid.NewString(), ShipmentID: sh.ID, OrderID: o.ID,
			IsActive: true, CreatedAt: now, UpdatedAt: now})
	}
	require.NoError(t, link(first))
	assert.ErrorIs(t, link(second), domain.ErrConflict)

	require.NoError(t, s.Shipments().UnlinkOrder(ctx, first.ID, o.ID))
	assert.NoError(t, link(second))
}
