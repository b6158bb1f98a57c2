package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/reservation"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
	"github.com/jhoicas/fbs-core/internal/testkit"
)

// ──────────────────────────────────────────────────────────────────────────────
// ProcessOrder
// ──────────────────────────────────────────────────────────────────────────────

func TestProcessOrder_ReservaTodasLasLineas(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p1 := w.Product(t, "Crema", 100)
	p2 := w.Product(t, "Jabón", 100)
	w.Stock(t, u.ID, p1.ID, 10)
	w.Stock(t, u.ID, p2.ID, 4)

	o := w.Order(t, "mp-1", testkit.Line{ProductID: p1.ID, Quantity: 3}, testkit.Line{ProductID: p2.ID, Quantity: 4})
	o, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)

	assert.Equal(t, entity.OrderProcessing, o.Status)
	assert.True(t, o.Reserved())
	for _, it := range o.Items {
		assert.Equal(t, u.ID, it.StorageUnitID)
	}
	e1 := w.Entry(t, u.ID, p1.ID)
	assert.Equal(t, int64(7), e1.Available)
	assert.Equal(t, int64(3), e1.Reserved)
	e2 := w.Entry(t, u.ID, p2.ID)
	assert.Equal(t, int64(0), e2.Available)
	assert.Equal(t, int64(4), e2.Reserved)
}

func TestProcessOrder_TodoONada(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p1 := w.Product(t, "Crema", 100)
	p2 := w.Product(t, "Jabón", 100)
	w.Stock(t, u.ID, p1.ID, 5)
	w.Stock(t, u.ID, p2.ID, 1)
	before1, before2 := w.Entry(t, u.ID, p1.ID), w.Entry(t, u.ID, p2.ID)

	o := w.Order(t, "mp-1", testkit.Line{ProductID: p1.ID, Quantity: 3}, testkit.Line{ProductID: p2.ID, Quantity: 2})
	got, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.NotNil(t, got)

	assert.Equal(t, entity.OrderNew, got.Status)
	assert.False(t, got.Items[0].IsProcessed)
	assert.False(t, got.Items[0].Unfulfillable)
	assert.True(t, got.Items[1].Unfulfillable)

	after1, after2 := w.Entry(t, u.ID, p1.ID), w.Entry(t, u.ID, p2.ID)
	assert.Equal(t, before1.Available, after1.Available)
	assert.Equal(t, int64(0), after1.Reserved)
	assert.Equal(t, before2.Available, after2.Available)
	assert.Equal(t, int64(0), after2.Reserved)
	w.Balanced(t, u.ID)
}

func TestProcessOrder_SinStockNoRegistraMovimientos(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	before := w.Store.MovementCount()

	o := w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 1})
	got, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, entity.OrderNew, got.Status)
	assert.True(t, got.Items[0].Unfulfillable)
	assert.Equal(t, before, w.Store.MovementCount())

	stored, err := w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].Unfulfillable)
}

func TestProcessOrder_ReprocesarNoReservaDeNuevo(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 10)

	o := w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 2})
	_, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)
	count := w.Store.MovementCount()

	again, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderProcessing, again.Status)
	assert.Equal(t, count, w.Store.MovementCount())
	assert.Equal(t, int64(2), w.Entry(t, u.ID, p.ID).Reserved)
}

func TestProcessOrder_ReintentoTrasReposicion(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)

	o := w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 2})
	_, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	w.Stock(t, u.ID, p.ID, 2)
	got, err := w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderProcessing, got.Status)
	assert.False(t, got.Items[0].Unfulfillable)
}

func TestProcessOrder_PedidoCanceladoNoSeProcesa(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	p := w.Product(t, "Crema", 100)
	o := w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 1})
	_, err := w.Orders.CancelOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)

	_, err = w.Orders.ProcessOrder(ctx, o.ID, testkit.UserID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProcessOrder_ConcurrenciaSobreElUltimoStock(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 5)

	const n = 10
	orders := make([]*entity.Order, n)
	for i := range orders {
		orders[i] = w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 1})
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, o := range orders {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := w.Orders.ProcessOrder(ctx, id, testkit.UserID)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("error inesperado: %v", err)
			}
		}(o.ID)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	e := w.Entry(t, u.ID, p.ID)
	assert.Equal(t, int64(0), e.Available)
	assert.Equal(t, int64(5), e.Reserved)
	w.Balanced(t, u.ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancelación y estados
// ──────────────────────────────────────────────────────────────────────────────

func TestCancelOrder_LiberaReservas(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 10)

	o := w.ReadyOrder(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 4})
	o, err := w.Orders.CancelOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)

	assert.Equal(t, entity.OrderCancelled, o.Status)
	assert.False(t, o.Items[0].IsProcessed)
	e := w.Entry(t, u.ID, p.ID)
	assert.Equal(t, int64(10), e.Available)
	assert.Equal(t, int64(0), e.Reserved)
	w.Balanced(t, u.ID)
}

func TestCancelOrder_EnEnvioSeRechaza(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 10)

	o := w.ReadyOrder(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 4})
	sh, err := w.Shipments.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: wh.ID})
	require.NoError(t, err)
	_, err = w.Shipments.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
	require.NoError(t, err)

	_, err = w.Orders.CancelOrder(ctx, o.ID, testkit.UserID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(4), w.Entry(t, u.ID, p.ID).Reserved)
}

// addOnCancelWrite vincula el pedido a un envío justo antes de que se escriba la cancelación.
type addOnCancelWrite struct {
	repository.OrderRepository
	once sync.Once
	add  func()
}

func (r *addOnCancelWrite) Update(ctx context.Context, o *entity.Order) error {
	if o.Status == entity.OrderCancelled {
		r.once.Do(r.add)
	}
	return r.OrderRepository.Update(ctx, o)
}

func TestCancelOrder_VinculadoMientrasSeCancelaSeRechaza(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 10)

	o := w.ReadyOrder(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 4})
	sh, err := w.Shipments.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: wh.ID})
	require.NoError(t, err)

	var addErr error
	orders := &addOnCancelWrite{OrderRepository: w.Store.Orders()}
	orders.add = func() { _, addErr = w.Shipments.AddOrder(ctx, testkit.Actor, sh.ID, o.ID) }
	m := reservation.NewManager(orders, w.Store.Shipments(), w.Ledger, w.Router, zerolog.Nop()).WithClock(w.Clock)

	_, err = m.CancelOrder(ctx, o.ID, testkit.UserID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, addErr)

	got, err := w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReadyToShip, got.Status)
	assert.True(t, got.Items[0].IsProcessed)
	assert.Equal(t, int64(4), w.Entry(t, u.ID, p.ID).Reserved)
	w.Balanced(t, u.ID)
}

// failingRelease falla la liberación n y delega el resto.
type failingRelease struct {
	reservation.Ledger
	mu     sync.Mutex
	calls  int
	failAt int
}

func (l *failingRelease) Release(ctx context.Context, m ledger.Mutation) (ledger.Result, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.mu.Unlock()
	if n == l.failAt {
		return ledger.Result{}, errors.New("conexión perdida")
	}
	return l.Ledger.Release(ctx, m)
}

func TestCancelOrder_FalloParcialSeRetoma(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p1 := w.Product(t, "Crema", 100)
	p2 := w.Product(t, "Jabón", 100)
	w.Stock(t, u.ID, p1.ID, 10)
	w.Stock(t, u.ID, p2.ID, 10)
	o := w.ReadyOrder(t, "mp-1",
		testkit.Line{ProductID: p1.ID, Quantity: 2},
		testkit.Line{ProductID: p2.ID, Quantity: 3})

	l := &failingRelease{Ledger: w.Ledger, failAt: 2}
	m := reservation.NewManager(w.Store.Orders(), w.Store.Shipments(), l, w.Router, zerolog.Nop()).WithClock(w.Clock)

	_, err := m.CancelOrder(ctx, o.ID, testkit.UserID)
	require.Error(t, err)
	got, err := w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, got.Status)
	assert.True(t, got.HasReservations())

	got, err = m.CancelOrder(ctx, o.ID, testkit.UserID)
	require.NoError(t, err)
	assert.False(t, got.HasReservations())
	assert.Equal(t, int64(0), w.Entry(t, u.ID, p1.ID).Reserved)
	assert.Equal(t, int64(0), w.Entry(t, u.ID, p2.ID).Reserved)
	assert.Equal(t, int64(10), w.Entry(t, u.ID, p1.ID).Available)
	w.Balanced(t, u.ID)

	// Ya sin reservas, repetir la cancelación es una transición inválida.
	_, err = m.CancelOrder(ctx, o.ID, testkit.UserID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkReadyToShip_RequiereProcessing(t *testing.T) {
	w := testkit.New(t)
	p := w.Product(t, "Crema", 100)
	o := w.Order(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 1})

	_, err := w.Orders.MarkReadyToShip(context.Background(), o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkReturned_SoloDesdeDespachado(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	u := w.Unit(t, wh.ID, "A-01")
	p := w.Product(t, "Crema", 100)
	w.Stock(t, u.ID, p.ID, 10)
	o := w.ReadyOrder(t, "mp-1", testkit.Line{ProductID: p.ID, Quantity: 1})

	_, err := w.Orders.MarkReturned(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
