package supply_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/supply"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/testkit"
)

type fixture struct {
	w       *testkit.World
	dest    *entity.Warehouse
	unit    *entity.StorageUnit
	product *entity.Product
}

func newFixture(t *testing.T, opts ...testkit.UnitOption) fixture {
	t.Helper()
	w := testkit.New(t)
	dest := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	return fixture{
		w:       w,
		dest:    dest,
		unit:    w.Unit(t, dest.ID, "RCV-01", opts...),
		product: w.Product(t, "Crema", 250),
	}
}

func (f fixture) create(t *testing.T, qty ...int64) *entity.Supply {
	t.Helper()
	in := dto.CreateSupplyRequest{
		Name:                   "Reposición",
		DestinationWarehouseID: f.dest.ID,
		StorageUnitID:          f.unit.ID,
	}
	for _, q := range qty {
		in.Items = append(in.Items, dto.SupplyItemRequest{ProductID: f.product.ID, Quantity: q})
	}
	sup, err := f.w.Supplies.Create(context.Background(), testkit.Actor, in)
	require.NoError(t, err)
	return sup
}

// inTransit crea, envía, aprueba y despacha.
func (f fixture) inTransit(t *testing.T, qty ...int64) *entity.Supply {
	t.Helper()
	ctx := context.Background()
	sup := f.create(t, qty...)
	_, err := f.w.Supplies.Submit(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	_, err = f.w.Supplies.Approve(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	sup, err = f.w.Supplies.Dispatch(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	require.Equal(t, entity.SupplyInTransit, sup.Status)
	return sup
}

// ──────────────────────────────────────────────────────────────────────────────
// Recepción
// ──────────────────────────────────────────────────────────────────────────────

func TestReceive_ParcialesCompletanElSuministro(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.inTransit(t, 50)
	itemID := sup.Items[0].ID

	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(50), e.InTransit)
	assert.Equal(t, int64(0), e.Available)

	sup, err := f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 30, "r-1")
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyInTransit, sup.Status)

	sup, err = f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 20, "r-2")
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyReceived, sup.Status)

	e = f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(50), e.Available)
	assert.Equal(t, int64(0), e.InTransit)

	_, err = f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 1, "r-3")
	assert.ErrorIs(t, err, domain.ErrOverReceipt)
	f.w.Balanced(t, f.unit.ID)
}

func TestReceive_ExcesoRechazado(t *testing.T) {
	f := newFixture(t)
	sup := f.inTransit(t, 10)

	_, err := f.w.Supplies.Receive(context.Background(), testkit.Actor, sup.Items[0].ID, 11, "r-1")
	assert.ErrorIs(t, err, domain.ErrOverReceipt)
	assert.Equal(t, int64(0), f.w.Entry(t, f.unit.ID, f.product.ID).Available)
}

func TestReceive_ReintentoDelMismoReciboNoSumaDosVeces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.inTransit(t, 10)
	itemID := sup.Items[0].ID

	_, err := f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 4, "r-1")
	require.NoError(t, err)
	sup, err = f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 4, "r-1")
	require.NoError(t, err)

	assert.Equal(t, int64(4), sup.Items[0].QuantityReceived)
	assert.Len(t, sup.Items[0].Receipts, 1)
	assert.Equal(t, int64(4), f.w.Entry(t, f.unit.ID, f.product.ID).Available)

	_, err = f.w.Supplies.Receive(ctx, testkit.Actor, itemID, 5, "r-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestReceive_SuministroNoDespachado(t *testing.T) {
	f := newFixture(t)
	sup := f.create(t, 10)

	_, err := f.w.Supplies.Receive(context.Background(), testkit.Actor, sup.Items[0].ID, 5, "r-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cierre forzado y cancelación
// ──────────────────────────────────────────────────────────────────────────────

func TestForceClose_RegistraFaltanteYReviertTransito(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.inTransit(t, 50)

	_, err := f.w.Supplies.Receive(ctx, testkit.Actor, sup.Items[0].ID, 45, "r-1")
	require.NoError(t, err)

	sup, err = f.w.Supplies.ForceClose(ctx, testkit.Actor, sup.ID, "dañado en transporte")
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyReceived, sup.Status)
	require.Len(t, sup.Discrepancies, 1)
	d := sup.Discrepancies[0]
	assert.Equal(t, int64(50), d.Expected)
	assert.Equal(t, int64(45), d.Received)
	assert.Equal(t, int64(5), d.Shortfall)
	assert.Equal(t, "dañado en transporte", d.Reason)

	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(45), e.Available)
	assert.Equal(t, int64(0), e.InTransit)
	f.w.Balanced(t, f.unit.ID)
}

func TestForceClose_SinMotivo(t *testing.T) {
	f := newFixture(t)
	sup := f.inTransit(t, 5)
	_, err := f.w.Supplies.ForceClose(context.Background(), testkit.Actor, sup.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancel_EnTransitoRevierteLoNoRecibido(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.inTransit(t, 20)

	_, err := f.w.Supplies.Receive(ctx, testkit.Actor, sup.Items[0].ID, 8, "r-1")
	require.NoError(t, err)

	sup, err = f.w.Supplies.Cancel(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyCancelled, sup.Status)

	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(8), e.Available)
	assert.Equal(t, int64(0), e.InTransit)

	// Repetir la cancelación no revierte dos veces.
	_, err = f.w.Supplies.Cancel(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.w.Entry(t, f.unit.ID, f.product.ID).InTransit)
	f.w.Balanced(t, f.unit.ID)
}

func TestCancel_BorradorNoTocaElLedger(t *testing.T) {
	f := newFixture(t)
	sup := f.create(t, 20)
	before := f.w.Store.MovementCount()

	sup, err := f.w.Supplies.Cancel(context.Background(), testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyCancelled, sup.Status)
	assert.Equal(t, before, f.w.Store.MovementCount())
}

func TestCancel_RecibidoNoSePuedeCancelar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.inTransit(t, 5)
	_, err := f.w.Supplies.Receive(ctx, testkit.Actor, sup.Items[0].ID, 5, "r-1")
	require.NoError(t, err)

	_, err = f.w.Supplies.Cancel(ctx, testkit.Actor, sup.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ──────────────────────────────────────────────────────────────────────────────
// Aprobación y capacidad
// ──────────────────────────────────────────────────────────────────────────────

func TestApprove_CapacidadExcedida(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testkit.MaxItems(100))
	f.w.Stock(t, f.unit.ID, f.product.ID, 80)

	sup := f.create(t, 30)
	_, err := f.w.Supplies.Submit(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)

	_, err = f.w.Supplies.Approve(ctx, testkit.Actor, sup.ID)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	sup, err = f.w.Supplies.Get(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyPending, sup.Status)
}

func TestApprove_CapacidadDelAncestro(t *testing.T) {
	ctx := context.Background()
	w := testkit.New(t)
	dest := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	rack := w.Unit(t, dest.ID, "RACK-1", testkit.MaxWeight(10))
	shelf := w.Unit(t, dest.ID, "RACK-1-S1", testkit.Parent(rack.ID))
	sibling := w.Unit(t, dest.ID, "RACK-1-S2", testkit.Parent(rack.ID))
	heavy := w.Product(t, "Saco", 2000)
	w.Stock(t, sibling.ID, heavy.ID, 3)

	sup, err := w.Supplies.Create(ctx, testkit.Actor, dto.CreateSupplyRequest{
		DestinationWarehouseID: dest.ID,
		StorageUnitID:          shelf.ID,
		Items:                  []dto.SupplyItemRequest{{ProductID: heavy.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	_, err = w.Supplies.Submit(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)

	// 6 kg ocupados en el rack + 6 kg entrantes > 10 kg.
	_, err = w.Supplies.Approve(ctx, testkit.Actor, sup.ID)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestApprove_DentroDeCapacidad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testkit.MaxItems(100))
	f.w.Stock(t, f.unit.ID, f.product.ID, 70)

	sup := f.create(t, 30)
	_, err := f.w.Supplies.Submit(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	sup, err = f.w.Supplies.Approve(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyApproved, sup.Status)
}

func TestDispatch_SinAprobar(t *testing.T) {
	f := newFixture(t)
	sup := f.create(t, 5)
	_, err := f.w.Supplies.Dispatch(context.Background(), testkit.Actor, sup.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// cancelOnCommit ejecuta cancel justo antes del primer CommitInTransit.
type cancelOnCommit struct {
	supply.Ledger
	once   sync.Once
	cancel func()
}

func (l *cancelOnCommit) CommitInTransit(ctx context.Context, m ledger.Mutation) (ledger.Result, error) {
	l.once.Do(l.cancel)
	return l.Ledger.CommitInTransit(ctx, m)
}

func TestDispatch_CanceladoDuranteElDespachoNoDejaTransito(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sup := f.create(t, 20, 30)
	_, err := f.w.Supplies.Submit(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	_, err = f.w.Supplies.Approve(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)

	var svc *supply.Service
	var cancelErr error
	l := &cancelOnCommit{Ledger: f.w.Ledger}
	l.cancel = func() { _, cancelErr = svc.Cancel(ctx, testkit.Actor, sup.ID) }
	svc = supply.NewService(f.w.Store.Supplies(), f.w.Store.Warehouses(), f.w.Store.StorageUnits(), f.w.Store.Products(), l, zerolog.Nop()).
		WithClock(f.w.Clock)

	_, err = svc.Dispatch(ctx, testkit.Actor, sup.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.NoError(t, cancelErr)

	got, err := f.w.Supplies.Get(ctx, testkit.Actor, sup.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SupplyCancelled, got.Status)

	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(0), e.InTransit)
	assert.Equal(t, int64(0), e.Available)
	f.w.Balanced(t, f.unit.ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_UbicacionDeOtraBodega(t *testing.T) {
	f := newFixture(t)
	other := f.w.Warehouse(t, "Norte", entity.WarehouseClient)
	foreign := f.w.Unit(t, other.ID, "N-01")

	_, err := f.w.Supplies.Create(context.Background(), testkit.Actor, dto.CreateSupplyRequest{
		DestinationWarehouseID: f.dest.ID,
		StorageUnitID:          foreign.ID,
		Items:                  []dto.SupplyItemRequest{{ProductID: f.product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreate_OtraEmpresaNoVeLaBodega(t *testing.T) {
	f := newFixture(t)
	_, err := f.w.Supplies.Create(context.Background(), domain.Actor{UserID: "x", CompanyID: "otra"}, dto.CreateSupplyRequest{
		DestinationWarehouseID: f.dest.ID,
		StorageUnitID:          f.unit.ID,
		Items:                  []dto.SupplyItemRequest{{ProductID: f.product.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
