package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/infrastructure/report"
	apphttp "github.com/jhoicas/fbs-core/internal/interfaces/http"
	"github.com/jhoicas/fbs-core/internal/testkit"
)

type apiFixture struct {
	w       *testkit.World
	app     *fiber.App
	unit    *entity.StorageUnit
	product *entity.Product
}

func newAPI(t *testing.T) apiFixture {
	t.Helper()
	w := testkit.New(t)
	wh := w.Warehouse(t, "Central", entity.WarehouseFulfillment)
	f := apiFixture{
		w:       w,
		unit:    w.Unit(t, wh.ID, "A-01"),
		product: w.Product(t, "Crema", 100),
	}
	f.app = fiber.New()
	apphttp.Router(f.app, apphttp.RouterDeps{
		Ledger:      w.Ledger,
		Export:      ledger.NewExportUseCase(w.Ledger, report.NewXLSXExporter(), w.Reports),
		Reports:     w.Reports,
		ProductUC:   w.Products,
		WarehouseUC: w.Warehouses,
		Orders:      w.Orders,
		Supplies:    w.Supplies,
		Shipments:   w.Shipments,
		Audits:      w.Audits,
		Reconciler:  w.Reconciler,
		JWTSecret:   testJWTSecret,
	})
	return f
}

func (f apiFixture) call(t *testing.T, method, path, auth string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRouter_Health(t *testing.T) {
	f := newAPI(t)
	resp := f.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SinTokenRetorna401(t *testing.T) {
	f := newAPI(t)
	resp := f.call(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLedger_RecibirYConsultarSaldo(t *testing.T) {
	f := newAPI(t)
	admin := tokenForRole(t, apphttp.RoleAdmin)

	resp := f.call(t, http.MethodPost, "/api/ledger/receive", admin, dto.LedgerReceiveRequest{
		StorageUnitID: f.unit.ID, ProductID: f.product.ID, Quantity: 12, IdempotencyKey: "rcv-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mut := decode[dto.LedgerMutationResponse](t, resp)
	assert.True(t, mut.Applied)
	assert.Equal(t, int64(12), mut.Entry.Available)

	// Reintento con la misma clave: no vuelve a sumar.
	resp = f.call(t, http.MethodPost, "/api/ledger/receive", admin, dto.LedgerReceiveRequest{
		StorageUnitID: f.unit.ID, ProductID: f.product.ID, Quantity: 12, IdempotencyKey: "rcv-1",
	})
	mut = decode[dto.LedgerMutationResponse](t, resp)
	assert.False(t, mut.Applied)

	resp = f.call(t, http.MethodGet, "/api/ledger/"+f.unit.ID+"/"+f.product.ID, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decode[dto.StockEntryResponse](t, resp)
	assert.Equal(t, int64(12), entry.Available)
	assert.Equal(t, int64(12), entry.Total)

	resp = f.call(t, http.MethodGet, "/api/ledger/"+f.unit.ID+"/"+f.product.ID+"/movements", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movs := decode[[]dto.StockMovementResponse](t, resp)
	require.Len(t, movs, 1)
	assert.Equal(t, string(entity.CauseReceive), movs[0].Cause)

	resp = f.call(t, http.MethodGet, "/api/ledger/"+f.unit.ID+"/"+f.product.ID+"/verify", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLedger_AjusteBajoCeroRetorna422(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 3)

	resp := f.call(t, http.MethodPost, "/api/ledger/adjust", tokenForRole(t, apphttp.RoleBodeguero), dto.LedgerAdjustRequest{
		StorageUnitID: f.unit.ID, ProductID: f.product.ID, Delta: -5, Reason: "merma",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.NotEmpty(t, body.Code)
	assert.Equal(t, int64(3), f.w.Entry(t, f.unit.ID, f.product.ID).Available)
}

func TestLedger_VendedorNoPuedeAjustar(t *testing.T) {
	f := newAPI(t)
	resp := f.call(t, http.MethodPost, "/api/ledger/adjust", tokenForRole(t, apphttp.RoleVendedor), dto.LedgerAdjustRequest{
		StorageUnitID: f.unit.ID, ProductID: f.product.ID, Delta: 5, Reason: "x",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLedger_UbicacionDeOtraEmpresaRetorna404(t *testing.T) {
	f := newAPI(t)
	other := tokenFor(t, "company-2", apphttp.RoleAdmin, time.Hour)
	resp := f.call(t, http.MethodGet, "/api/ledger/"+f.unit.ID+"/"+f.product.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLedger_EscrituraConProductoAjenoRetorna404(t *testing.T) {
	f := newAPI(t)
	foreign := &entity.Product{
		ID: "prod-ajeno", CompanyID: "company-2", Name: "Ajeno", Article: "AJ-1",
		IsActive: true, CreatedAt: testkit.Now, UpdatedAt: testkit.Now,
	}
	require.NoError(t, f.w.Store.Products().Create(context.Background(), foreign))
	admin := tokenForRole(t, apphttp.RoleAdmin)

	for _, productID := range []string{foreign.ID, "prod-inexistente"} {
		resp := f.call(t, http.MethodPost, "/api/ledger/receive", admin, dto.LedgerReceiveRequest{
			StorageUnitID: f.unit.ID, ProductID: productID, Quantity: 5,
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, productID)

		resp = f.call(t, http.MethodPost, "/api/ledger/adjust", admin, dto.LedgerAdjustRequest{
			StorageUnitID: f.unit.ID, ProductID: productID, Delta: 5, Reason: "conteo",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, productID)
	}
	assert.Zero(t, f.w.Store.MovementCount())
}

func TestLedger_ExportarMovimientos(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 4)

	resp := f.call(t, http.MethodGet, "/api/ledger/movements/export?storage_unit_id="+f.unit.ID, tokenForRole(t, apphttp.RoleAdmin), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx es un zip")
}

func TestLedger_HistorialSinUbicacionRetorna400(t *testing.T) {
	f := newAPI(t)
	resp := f.call(t, http.MethodGet, "/api/ledger/movements", tokenForRole(t, apphttp.RoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrders_ProcesarSinStockRetorna422(t *testing.T) {
	f := newAPI(t)
	mp := f.w.Marketplace(t, "Ozon")
	o := f.w.Order(t, mp.ID, testkit.Line{ProductID: f.product.ID, Quantity: 2})

	resp := f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/process", tokenForRole(t, apphttp.RoleVendedor), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
}

func TestOrders_ProcesarYCancelar(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 5)
	mp := f.w.Marketplace(t, "Ozon")
	o := f.w.Order(t, mp.ID, testkit.Line{ProductID: f.product.ID, Quantity: 2})
	seller := tokenForRole(t, apphttp.RoleVendedor)

	resp := f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/process", seller, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[dto.OrderResponse](t, resp)
	assert.Equal(t, string(entity.OrderProcessing), got.Status)
	assert.True(t, got.Items[0].IsProcessed)
	assert.Equal(t, int64(2), f.w.Entry(t, f.unit.ID, f.product.ID).Reserved)

	resp = f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", seller, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e := f.w.Entry(t, f.unit.ID, f.product.ID)
	assert.Equal(t, int64(5), e.Available)
	assert.Zero(t, e.Reserved)

	resp = f.call(t, http.MethodPost, "/api/orders/"+o.ID+"/ready", tokenForRole(t, apphttp.RoleAdmin), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestOrders_PedidoDeOtraEmpresaRetorna404(t *testing.T) {
	f := newAPI(t)
	mp := f.w.Marketplace(t, "Ozon")
	o := f.w.Order(t, mp.ID, testkit.Line{ProductID: f.product.ID, Quantity: 1})

	resp := f.call(t, http.MethodGet, "/api/orders/"+o.ID, tokenFor(t, "company-2", apphttp.RoleAdmin, time.Hour), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarketplace_WebhookPedidoIdempotente(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 5)
	mp := f.w.Marketplace(t, "Ozon")
	f.w.Listing(t, mp.ID, f.product.ID, "SKU-1")
	integ := tokenForRole(t, apphttp.RoleIntegracion)

	ev := dto.OrderEvent{
		ExternalID: "WB-1",
		Status:     "new",
		Items:      []dto.OrderEventItem{{ExternalProductID: "SKU-1", Quantity: 1, Price: decimal.NewFromInt(10)}},
		TotalPrice: decimal.NewFromInt(10),
		UpdatedAt:  testkit.Now.Add(time.Hour),
	}
	resp := f.call(t, http.MethodPost, "/api/marketplaces/"+mp.ID+"/orders", integ, ev)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[dto.IngestResponse](t, resp)
	assert.Equal(t, "created", first.Outcome)
	assert.NotEmpty(t, first.OrderID)

	resp = f.call(t, http.MethodPost, "/api/marketplaces/"+mp.ID+"/orders", integ, ev)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[dto.IngestResponse](t, resp)
	assert.Equal(t, "duplicate", again.Outcome)
	assert.Equal(t, int64(1), f.w.Entry(t, f.unit.ID, f.product.ID).Reserved)
}

func TestMarketplace_WebhookInvalidoRetorna422(t *testing.T) {
	f := newAPI(t)
	mp := f.w.Marketplace(t, "Ozon")

	resp := f.call(t, http.MethodPost, "/api/marketplaces/"+mp.ID+"/orders", tokenForRole(t, apphttp.RoleIntegracion), dto.OrderEvent{Status: "new"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "rejected", decode[dto.IngestResponse](t, resp).Outcome)
}

func TestMarketplace_BodegueroNoPuedeIngerir(t *testing.T) {
	f := newAPI(t)
	mp := f.w.Marketplace(t, "Ozon")
	resp := f.call(t, http.MethodPost, "/api/marketplaces/"+mp.ID+"/orders", tokenForRole(t, apphttp.RoleBodeguero), dto.OrderEvent{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProducts_CrearDuplicadoRetorna409(t *testing.T) {
	f := newAPI(t)
	admin := tokenForRole(t, apphttp.RoleAdmin)
	in := dto.CreateProductRequest{Name: "Sérum", Article: "SR-1"}

	resp := f.call(t, http.MethodPost, "/api/products", admin, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.call(t, http.MethodPost, "/api/products", admin, in)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProducts_BorradoFisicoReferenciadoRetorna409(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 1)

	resp := f.call(t, http.MethodDelete, "/api/products/"+f.product.ID+"?hard=true", tokenForRole(t, apphttp.RoleAdmin), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "REFERENCED", decode[dto.ErrorResponse](t, resp).Code)
}

func TestStorageUnits_MoverBajoDescendienteRetorna409(t *testing.T) {
	f := newAPI(t)
	admin := tokenForRole(t, apphttp.RoleAdmin)

	resp := f.call(t, http.MethodPost, "/api/warehouses", admin, dto.CreateWarehouseRequest{Name: "Sur", Type: string(entity.WarehouseFulfillment)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	wh := decode[dto.WarehouseResponse](t, resp)

	resp = f.call(t, http.MethodPost, "/api/storage-units", admin, dto.CreateStorageUnitRequest{WarehouseID: wh.ID, Code: "R-1", Type: string(entity.UnitRack)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rack := decode[dto.StorageUnitResponse](t, resp)

	resp = f.call(t, http.MethodPost, "/api/storage-units", admin, dto.CreateStorageUnitRequest{WarehouseID: wh.ID, ParentID: rack.ID, Code: "R-1-S", Type: string(entity.UnitShelf)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	shelf := decode[dto.StorageUnitResponse](t, resp)

	resp = f.call(t, http.MethodPost, "/api/storage-units/"+rack.ID+"/move", admin, dto.MoveStorageUnitRequest{ParentID: shelf.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CYCLE", decode[dto.ErrorResponse](t, resp).Code)

	resp = f.call(t, http.MethodGet, "/api/warehouses/"+wh.ID+"/units", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]dto.StorageUnitResponse](t, resp), 2)
}

func TestInventories_ConteoYReporte(t *testing.T) {
	f := newAPI(t)
	f.w.Stock(t, f.unit.ID, f.product.ID, 10)
	admin := tokenForRole(t, apphttp.RoleAdmin)

	resp := f.call(t, http.MethodPost, "/api/inventories", admin, dto.StartAuditRequest{WarehouseID: f.unit.WarehouseID, Name: "Mensual", Start: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inv := decode[dto.InventoryResponse](t, resp)
	require.Len(t, inv.Items, 1)

	resp = f.call(t, http.MethodPost, "/api/inventories/"+inv.ID+"/complete", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INCOMPLETE_AUDIT", decode[dto.ErrorResponse](t, resp).Code)

	resp = f.call(t, http.MethodPost, "/api/inventories/items/"+inv.Items[0].ID+"/count", admin, dto.SubmitCountRequest{Quantity: 8, DiscrepancyReason: "rotura"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.call(t, http.MethodPost, "/api/inventories/"+inv.ID+"/complete", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(entity.InventoryCompleted), decode[dto.InventoryResponse](t, resp).Status)
	assert.Equal(t, int64(8), f.w.Entry(t, f.unit.ID, f.product.ID).Available)

	resp = f.call(t, http.MethodGet, "/api/inventories/"+inv.ID+"/report", admin, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}
