package shipment_test

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
	"github.com/jhoicas/fbs-core/internal/application/shipment"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
	"github.com/jhoicas/fbs-core/internal/testkit"
)

// countingLedger cuenta llamadas a Ship y puede fallar en la llamada n.
// onFirst, si está, corre antes de la primera llamada.
type countingLedger struct {
	next    shipment.Ledger
	mu      sync.Mutex
	calls   int
	failAt  int
	onFirst func()
}

func (c *countingLedger) Ship(ctx context.Context, m ledger.Mutation) (ledger.Result, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if n == 1 && c.onFirst != nil {
		c.onFirst()
	}
	if c.failAt > 0 && n == c.failAt {
		return ledger.Result{}, errors.New("conexión perdida")
	}
	return c.next.Ship(ctx, m)
}

func (c *countingLedger) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	w       *testkit.World
	wh      *entity.Warehouse
	unit    *entity.StorageUnit
	product *entity.Product
	counter *countingLedger
	svc     *shipment.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	f := &fixture{
		w:       w,
		wh:      wh,
		unit:    w.Unit(t, wh.ID, "A-01"),
		product: w.Product(t, "Crema", 500),
		counter: &countingLedger{next: w.Ledger},
	}
	f.svc = shipment.NewService(w.Store.Shipments(), w.Store.Orders(), w.Store.Warehouses(), w.Store.StorageUnits(),
		w.Store.Products(), f.counter, zerolog.Nop()).WithClock(w.Clock)
	w.Stock(t, f.unit.ID, f.product.ID, 100)
	return f
}

// approved arma un envío aprobado con los pedidos dados.
func (f *fixture) approved(t *testing.T, orders ...*entity.Order) *entity.Shipment {
	t.Helper()
	ctx := context.Background()
	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID, TransportCompany: "Servientrega"})
	require.NoError(t, err)
	for _, o := range orders {
		_, err = f.svc.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
		require.NoError(t, err)
	}
	_, err = f.svc.Submit(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	sh, err = f.svc.Approve(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	return sh
}

func (f *fixture) order(t *testing.T, qty int64) *entity.Order {
	t.Helper()
	return f.w.ReadyOrder(t, "mp-1", testkit.Line{ProductID: f.product.ID, Quantity: qty})
}

// ──────────────────────────────────────────────────────────────────────────────
// Armado del envío
// ──────────────────────────────────────────────────────────────────────────────

func TestAddOrder_SumaPeso(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 4)

	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)
	sh, err = f.svc.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", sh.TotalWeight.String())

	sh, err = f.svc.RemoveOrder(ctx, testkit.Actor, sh.ID, o.ID)
	require.NoError(t, err)
	assert.True(t, sh.TotalWeight.IsZero())
}

func TestAddOrder_PedidoNoListo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.w.Order(t, "mp-1", testkit.Line{ProductID: f.product.ID, Quantity: 1})

	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)
	_, err = f.svc.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// cancelOnLink cancela el pedido justo antes de escribir el vínculo.
type cancelOnLink struct {
	repository.ShipmentRepository
	once   sync.Once
	cancel func()
}

func (r *cancelOnLink) LinkOrder(ctx context.Context, l *entity.ShipmentOrder) error {
	r.once.Do(r.cancel)
	return r.ShipmentRepository.LinkOrder(ctx, l)
}

func TestAddOrder_PedidoCanceladoAntesDelVinculo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 4)

	var cancelErr error
	shipments := &cancelOnLink{ShipmentRepository: f.w.Store.Shipments()}
	shipments.cancel = func() { _, cancelErr = f.w.Orders.CancelOrder(ctx, o.ID, testkit.UserID) }
	svc := shipment.NewService(shipments, f.w.Store.Orders(), f.w.Store.Warehouses(), f.w.Store.StorageUnits(),
		f.w.Store.Products(), f.counter, zerolog.Nop()).WithClock(f.w.Clock)

	sh, err := svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)
	_, err = svc.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.NoError(t, cancelErr)

	link, err := f.w.Store.Shipments().GetActiveLinkByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
	sh, err = svc.Get(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.True(t, sh.TotalWeight.IsZero())

	got, err := f.w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, got.Status)
	assert.Equal(t, int64(0), f.w.Entry(t, f.unit.ID, f.product.ID).Reserved)
	f.w.Balanced(t, f.unit.ID)
}

func TestAddOrder_PedidoEnOtroEnvio(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 1)

	first, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)

	_, err = f.svc.AddOrder(ctx, testkit.Actor, first.ID, o.ID)
	require.NoError(t, err)
	_, err = f.svc.AddOrder(ctx, testkit.Actor, second.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAddOrder_ReservaEnOtraBodega(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 1)
	other := f.w.Warehouse(t, "Norte", entity.WarehouseClient)

	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: other.ID})
	require.NoError(t, err)
	_, err = f.svc.AddOrder(ctx, testkit.Actor, sh.ID, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmit_SinPedidos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, testkit.Actor, sh.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Despacho
// ──────────────────────────────────────────────────────────────────────────────

func TestShip_DescuentaReservasYMarcaPedidos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o1 := f.order(t, 3)
	o2 := f.order(t, 2)
	sh := f.approved(t, o1, o2)

	sh, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentShipped, sh.Status)
	assert.NotNil(t, sh.ShipmentDate)

	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(95), e.Available)
	assert.Equal(t, int64(0), e.Reserved)

	for _, id := range []string{o1.ID, o2.ID} {
		o, err := f.w.Orders.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.OrderShipped, o.Status)
	}
	links, err := f.svc.Links(ctx, sh.ID)
	require.NoError(t, err)
	for _, l := range links {
		assert.True(t, l.IsProcessed)
	}
	f.w.Balanced(t, f.unit.ID)
}

func TestShip_DosVecesDescuentaUnaSola(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sh := f.approved(t, f.order(t, 3), f.order(t, 2))

	_, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	first := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, 2, f.counter.Calls())

	_, err = f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.counter.Calls())

	second := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, first.Available, second.Available)
	assert.Equal(t, first.Reserved, second.Reserved)
}

func TestShip_FalloParcialSeRetoma(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o1 := f.order(t, 3)
	o2 := f.order(t, 2)
	sh := f.approved(t, o1, o2)
	f.counter.failAt = 2

	_, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.Error(t, err)

	sh, err = f.svc.Get(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentApproved, sh.Status)
	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(2), e.Reserved, "solo salió el primer pedido")

	sh, err = f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentShipped, sh.Status)
	// El primer pedido ya procesado no vuelve a llamar al ledger.
	assert.Equal(t, 3, f.counter.Calls())

	e = f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(95), e.Available)
	assert.Equal(t, int64(0), e.Reserved)
	f.w.Balanced(t, f.unit.ID)
}

func TestShip_SinAprobar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sh, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)

	_, err = f.svc.Ship(ctx, testkit.Actor, sh.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Zero(t, f.counter.Calls())
}

func TestMarkDelivered_EntregaLosPedidos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 1)
	sh := f.approved(t, o)
	_, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)

	sh, err = f.svc.MarkDelivered(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentDelivered, sh.Status)

	got, err := f.w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderDelivered, got.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancelación
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_DesvinculaPedidosSinTocarElLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, 3)
	sh := f.approved(t, o)
	before := f.w.Store.MovementCount()

	sh, err := f.svc.Cancel(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentCancelled, sh.Status)
	assert.Equal(t, before, f.w.Store.MovementCount())

	got, err := f.w.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReadyToShip, got.Status)

	// El pedido queda libre para otro envío.
	other, err := f.svc.Create(ctx, testkit.Actor, dto.CreateShipmentRequest{WarehouseID: f.wh.ID})
	require.NoError(t, err)
	_, err = f.svc.AddOrder(ctx, testkit.Actor, other.ID, o.ID)
	assert.NoError(t, err)
}

func TestCancel_DespachadoNoSePuedeCancelar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sh := f.approved(t, f.order(t, 1))
	_, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, testkit.Actor, sh.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_DespachoParcialSeRechaza(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sh := f.approved(t, f.order(t, 1), f.order(t, 1))
	f.counter.failAt = 2
	_, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.Error(t, err)

	_, err = f.svc.Cancel(ctx, testkit.Actor, sh.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancel_DuranteElDespachoSeRechaza(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o1 := f.order(t, 3)
	o2 := f.order(t, 2)
	sh := f.approved(t, o1, o2)

	var cancelErr error
	f.counter.onFirst = func() { _, cancelErr = f.svc.Cancel(ctx, testkit.Actor, sh.ID) }

	got, err := f.svc.Ship(ctx, testkit.Actor, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ShipmentShipped, got.Status)
	assert.ErrorIs(t, cancelErr, domain.ErrConflict)

	for _, o := range []*entity.Order{o1, o2} {
		got, err := f.w.Orders.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.OrderShipped, got.Status)
	}
	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(95), e.Available)
	assert.Equal(t, int64(0), e.Reserved)
	f.w.Balanced(t, f.unit.ID)
}
