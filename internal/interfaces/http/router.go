package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/audit"
	"github.com/jhoicas/fbs-core/internal/application/catalog"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/marketplace"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/application/reservation"
	"github.com/jhoicas/fbs-core/internal/application/shipment"
	"github.com/jhoicas/fbs-core/internal/application/supply"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger      *ledger.Service
	Export      *ledger.ExportUseCase
	Reports     ports.ReportStore
	ProductUC   *catalog.ProductUseCase
	WarehouseUC *catalog.WarehouseUseCase
	Orders      *reservation.Manager
	Supplies    *supply.Service
	Shipments   *shipment.Service
	Audits      *audit.Service
	Reconciler  *marketplace.Reconciler
	JWTSecret   string
	// Metrics expone /metrics; nil lo omite.
	Metrics fiber.Handler
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", deps.Metrics)
	}

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	staff := RequireRole(RoleAdmin, RoleBodeguero)
	sellers := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)
	admin := RequireRole(RoleAdmin)
	webhooks := RequireRole(RoleAdmin, RoleIntegracion)

	// Catálogo
	products := api.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", staff, productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", staff, productHandler.Update)
	products.Delete("/:id", admin, productHandler.Delete)

	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses := api.Group("/warehouses")
	warehouses.Post("/", admin, warehouseHandler.Create)
	warehouses.Get("/", warehouseHandler.List)
	warehouses.Get("/:id", warehouseHandler.GetByID)
	warehouses.Get("/:id/units", warehouseHandler.ListUnits)

	units := api.Group("/storage-units")
	units.Post("/", staff, warehouseHandler.CreateUnit)
	units.Post("/:id/move", staff, warehouseHandler.MoveUnit)

	// Ledger (las rutas fijas van antes que /:unit/:product)
	ledgerHandler := NewLedgerHandler(deps.Ledger, deps.Export, deps.Reports, deps.WarehouseUC, deps.ProductUC)
	lg := api.Group("/ledger")
	lg.Get("/movements", ledgerHandler.History)
	lg.Get("/movements/export", ledgerHandler.Export)
	lg.Post("/adjust", staff, ledgerHandler.Adjust)
	lg.Post("/receive", staff, ledgerHandler.Receive)
	lg.Get("/:unit/:product", ledgerHandler.Snapshot)
	lg.Get("/:unit/:product/movements", ledgerHandler.Movements)
	lg.Get("/:unit/:product/verify", ledgerHandler.Verify)

	// Pedidos
	orderHandler := NewOrderHandler(deps.Orders)
	orders := api.Group("/orders")
	orders.Get("/:id", orderHandler.GetByID)
	orders.Post("/:id/process", sellers, orderHandler.Process)
	orders.Post("/:id/cancel", sellers, orderHandler.Cancel)
	orders.Post("/:id/ready", staff, orderHandler.Ready)
	orders.Post("/:id/deliver", staff, orderHandler.Deliver)
	orders.Post("/:id/return", staff, orderHandler.Return)

	// Suministros
	supplyHandler := NewSupplyHandler(deps.Supplies)
	supplies := api.Group("/supplies")
	supplies.Post("/", staff, supplyHandler.Create)
	supplies.Get("/", supplyHandler.List)
	supplies.Post("/items/:itemId/receive", staff, supplyHandler.Receive)
	supplies.Get("/:id", supplyHandler.GetByID)
	supplies.Post("/:id/submit", staff, supplyHandler.Submit)
	supplies.Post("/:id/approve", admin, supplyHandler.Approve)
	supplies.Post("/:id/dispatch", staff, supplyHandler.Dispatch)
	supplies.Post("/:id/cancel", staff, supplyHandler.Cancel)
	supplies.Post("/:id/close", admin, supplyHandler.Close)

	// Envíos
	shipmentHandler := NewShipmentHandler(deps.Shipments)
	shipments := api.Group("/shipments")
	shipments.Post("/", staff, shipmentHandler.Create)
	shipments.Get("/:id", shipmentHandler.GetByID)
	shipments.Post("/:id/orders", staff, shipmentHandler.AddOrder)
	shipments.Delete("/:id/orders/:orderId", staff, shipmentHandler.RemoveOrder)
	shipments.Post("/:id/submit", staff, shipmentHandler.Submit)
	shipments.Post("/:id/approve", admin, shipmentHandler.Approve)
	shipments.Post("/:id/ship", staff, shipmentHandler.Ship)
	shipments.Post("/:id/deliver", staff, shipmentHandler.Deliver)
	shipments.Post("/:id/cancel", staff, shipmentHandler.Cancel)

	// Tomas de inventario
	inventoryHandler := NewInventoryHandler(deps.Audits, deps.Reports)
	inventories := api.Group("/inventories")
	inventories.Post("/", staff, inventoryHandler.Create)
	inventories.Post("/items/:itemId/count", staff, inventoryHandler.Count)
	inventories.Get("/:id", inventoryHandler.GetByID)
	inventories.Get("/:id/report", inventoryHandler.Report)
	inventories.Post("/:id/start", staff, inventoryHandler.Start)
	inventories.Post("/:id/findings", staff, inventoryHandler.Finding)
	inventories.Post("/:id/complete", admin, inventoryHandler.Complete)
	inventories.Post("/:id/cancel", staff, inventoryHandler.Cancel)

	// Webhooks de marketplaces
	marketplaceHandler := NewMarketplaceHandler(deps.Reconciler)
	marketplaces := api.Group("/marketplaces")
	marketplaces.Post("/:id/orders", webhooks, marketplaceHandler.IngestOrder)
	marketplaces.Post("/:id/listings", webhooks, marketplaceHandler.IngestListing)
}
