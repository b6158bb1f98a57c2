// Package testkit arma el núcleo completo sobre el adaptador en memoria para pruebas
// de servicios y escenarios de aceptación.
package testkit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/audit"
	"github.com/jhoicas/fbs-core/internal/application/catalog"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/marketplace"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/application/reservation"
	"github.com/jhoicas/fbs-core/internal/application/shipment"
	"github.com/jhoicas/fbs-core/internal/application/supply"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/infrastructure/memory"
	"github.com/jhoicas/fbs-core/internal/infrastructure/report"
)

const (
	CompanyID = "company-1"
	UserID    = "user-1"
)

// Now reloj fijo de las pruebas.
var Now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// Actor actor por defecto.
var Actor = domain.Actor{UserID: UserID, CompanyID: CompanyID}

// World núcleo cableado sobre un store en memoria.
type World struct {
	Store       *memory.Store
	Ledger      *ledger.Service
	Products    *catalog.ProductUseCase
	Warehouses  *catalog.WarehouseUseCase
	Router      *reservation.Router
	Orders      *reservation.Manager
	Supplies    *supply.Service
	Shipments   *shipment.Service
	Audits      *audit.Service
	Reconciler  *marketplace.Reconciler
	Reports     ports.ReportStore
	ReportsFS   afero.Fs
	seq         atomic.Int64
	clockOffset atomic.Int64
}

// Option ajusta el armado.
type Option func(*options)

type options struct {
	routing reservation.RoutingConfig
}

// WithRouting reemplaza las expresiones de ruteo.
func WithRouting(cfg reservation.RoutingConfig) Option {
	return func(o *options) { o.routing = cfg }
}

// New arma un World limpio. El reloj arranca en Now y avanza un segundo por lectura.
func New(t testing.TB, opts ...Option) *World {
	t.Helper()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	w := &World{Store: memory.NewStore()}
	clock := w.Clock
	log := zerolog.Nop()

	w.Ledger = ledger.NewService(w.Store.TxRunner(), w.Store.Stock(), w.Store.Movements(), ports.NopMetrics{}, log).
		WithClock(clock)

	w.Products = catalog.NewProductUseCase(w.Store.Products(), w.Store.Movements(), log).WithClock(clock)
	w.Warehouses = catalog.NewWarehouseUseCase(w.Store.Warehouses(), w.Store.StorageUnits(), log).WithClock(clock)

	router, err := reservation.NewRouter(o.routing, w.Store.Warehouses(), w.Store.StorageUnits(), w.Ledger)
	require.NoError(t, err)
	w.Router = router

	w.Orders = reservation.NewManager(w.Store.Orders(), w.Store.Shipments(), w.Ledger, router, log).WithClock(clock)
	w.Supplies = supply.NewService(w.Store.Supplies(), w.Store.Warehouses(), w.Store.StorageUnits(), w.Store.Products(), w.Ledger, log).
		WithClock(clock)
	w.Shipments = shipment.NewService(w.Store.Shipments(), w.Store.Orders(), w.Store.Warehouses(), w.Store.StorageUnits(), w.Store.Products(), w.Ledger, log).
		WithClock(clock)

	w.ReportsFS = afero.NewMemMapFs()
	w.Reports = report.NewStore(w.ReportsFS, "reports")
	w.Audits = audit.NewService(w.Store.Inventories(), w.Store.Warehouses(), w.Store.StorageUnits(), w.Store.Products(), w.Ledger,
		report.NewPDFRenderer(), w.Reports, log).
		WithClock(clock)
	w.Reconciler = marketplace.NewReconciler(w.Store.Marketplaces(), w.Store.Orders(), w.Store.Listings(), w.Store.Products(),
		w.Orders, ports.NopMetrics{}, log).
		WithClock(clock)
	return w
}

// Clock reloj monotónico de las pruebas.
func (w *World) Clock() time.Time {
	return Now.Add(time.Duration(w.clockOffset.Add(1)) * time.Second)
}

// ID genera un identificador legible con prefijo.
func (w *World) ID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, w.seq.Add(1))
}

// Warehouse registra una bodega activa.
func (w *World) Warehouse(t testing.TB, name string, typ entity.WarehouseType) *entity.Warehouse {
	t.Helper()
	wh := &entity.Warehouse{
		ID:        w.ID("wh"),
		CompanyID: CompanyID,
		Name:      name,
		Type:      typ,
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	require.NoError(t, w.Store.Warehouses().Create(context.Background(), wh))
	return wh
}

// UnitOption ajusta una ubicación antes de crearla.
type UnitOption func(*entity.StorageUnit)

// Parent cuelga la ubicación de otra.
func Parent(parentID string) UnitOption {
	return func(u *entity.StorageUnit) { u.ParentID = parentID }
}

// MaxItems límite de unidades.
func MaxItems(n int64) UnitOption {
	return func(u *entity.StorageUnit) { u.MaxItems = &n }
}

// MaxWeight límite de peso en kg.
func MaxWeight(kg int64) UnitOption {
	return func(u *entity.StorageUnit) {
		d := decimal.NewFromInt(kg)
		u.MaxWeight = &d
	}
}

// Unit registra una ubicación activa en la bodega.
func (w *World) Unit(t testing.TB, warehouseID, code string, opts ...UnitOption) *entity.StorageUnit {
	t.Helper()
	u := &entity.StorageUnit{
		ID:          w.ID("unit"),
		WarehouseID: warehouseID,
		Code:        code,
		Name:        code,
		Type:        entity.UnitShelf,
		IsActive:    true,
		CreatedAt:   Now,
		UpdatedAt:   Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, w.Store.StorageUnits().Create(context.Background(), u))
	return u
}

// Product registra un producto con peso en gramos.
func (w *World) Product(t testing.TB, name string, grams int64) *entity.Product {
	t.Helper()
	id := w.ID("prod")
	p := &entity.Product{
		ID:        id,
		CompanyID: CompanyID,
		Name:      name,
		Article:   "ART-" + id,
		Barcode:   "BC-" + id,
		Weight:    decimal.NewFromInt(grams),
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	require.NoError(t, w.Store.Products().Create(context.Background(), p))
	return p
}

// Stock carga saldo disponible inicial.
func (w *World) Stock(t testing.TB, unitID, productID string, qty int64) {
	t.Helper()
	_, err := w.Ledger.Receive(context.Background(), ledger.SourceExternal, ledger.Mutation{
		UnitID:    unitID,
		ProductID: productID,
		Quantity:  qty,
		Reason:    entity.ReasonOpeningBalance,
		ActorID:   UserID,
	})
	require.NoError(t, err)
}

// Entry foto del saldo.
func (w *World) Entry(t testing.TB, unitID, productID string) entity.StockEntry {
	t.Helper()
	e, err := w.Ledger.Snapshot(context.Background(), unitID, productID)
	require.NoError(t, err)
	return e
}

// Line línea de pedido.
type Line struct {
	ProductID string
	Quantity  int64
}

// Order registra un pedido nuevo con las líneas dadas.
func (w *World) Order(t testing.TB, marketplaceID string, lines ...Line) *entity.Order {
	t.Helper()
	id := w.ID("order")
	o := &entity.Order{
		ID:            id,
		CompanyID:     CompanyID,
		MarketplaceID: marketplaceID,
		ExternalID:    "ext-" + id,
		Status:        entity.OrderNew,
		CreatedAt:     Now,
		UpdatedAt:     Now,
	}
	for i, l := range lines {
		o.Items = append(o.Items, entity.OrderItem{
			ID:        fmt.Sprintf("%s-item-%d", id, i+1),
			OrderID:   id,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
		})
	}
	require.NoError(t, w.Store.Orders().Create(context.Background(), o))
	return o
}

// ReadyOrder registra un pedido, lo reserva y lo deja en ready_to_ship.
func (w *World) ReadyOrder(t testing.TB, marketplaceID string, lines ...Line) *entity.Order {
	t.Helper()
	ctx := context.Background()
	o := w.Order(t, marketplaceID, lines...)
	_, err := w.Orders.ProcessOrder(ctx, o.ID, UserID)
	require.NoError(t, err)
	o, err = w.Orders.MarkReadyToShip(ctx, o.ID)
	require.NoError(t, err)
	return o
}

// Marketplace registra un marketplace conectado con FBS.
func (w *World) Marketplace(t testing.TB, name string) *entity.Marketplace {
	t.Helper()
	m := entity.Marketplace{
		ID:           w.ID("mp"),
		CompanyID:    CompanyID,
		Name:         name,
		Type:         entity.MarketplaceOther,
		IsFBSEnabled: true,
		IsConnected:  true,
		CreatedAt:    Now,
		UpdatedAt:    Now,
	}
	w.Store.SeedMarketplace(m)
	return &m
}

// Listing publica un producto en un marketplace.
func (w *World) Listing(t testing.TB, marketplaceID, productID, externalID string) *entity.ProductMarketplace {
	t.Helper()
	pm := &entity.ProductMarketplace{
		ID:            w.ID("listing"),
		ProductID:     productID,
		MarketplaceID: marketplaceID,
		ExternalID:    externalID,
		IsActive:      true,
		LastSync:      Now,
		CreatedAt:     Now,
		UpdatedAt:     Now,
	}
	require.NoError(t, w.Store.Listings().Create(context.Background(), pm))
	return pm
}

// Balanced verifica que cada saldo coincide con su historial.
func (w *World) Balanced(t testing.TB, unitIDs ...string) {
	t.Helper()
	ctx := context.Background()
	entries, err := w.Ledger.SnapshotUnits(ctx, unitIDs)
	require.NoError(t, err)
	for _, e := range entries {
		_, err := w.Ledger.Verify(ctx, e.StorageUnitID, e.ProductID)
		require.NoError(t, err, "ubicación %s producto %s", e.StorageUnitID, e.ProductID)
		require.True(t, e.NonNegative())
	}
}
