package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/fbs-core/internal/application/audit"
	"github.com/jhoicas/fbs-core/internal/application/catalog"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/marketplace"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/application/reservation"
	"github.com/jhoicas/fbs-core/internal/application/shipment"
	"github.com/jhoicas/fbs-core/internal/application/supply"
	inframarketplace "github.com/jhoicas/fbs-core/internal/infrastructure/marketplace"
	"github.com/jhoicas/fbs-core/internal/infrastructure/metrics"
	"github.com/jhoicas/fbs-core/internal/infrastructure/postgres"
	"github.com/jhoicas/fbs-core/internal/infrastructure/report"
	httpRouter "github.com/jhoicas/fbs-core/internal/interfaces/http"
	"github.com/jhoicas/fbs-core/pkg/config"
	"github.com/jhoicas/fbs-core/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		log.Info().Msg("migraciones aplicadas")
	}

	var appMetrics ports.Metrics = ports.NopMetrics{}
	if cfg.Metrics.Enabled {
		prom, err := metrics.NewPrometheus(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal().Err(err).Msg("registrar métricas")
		}
		appMetrics = prom
	}

	store := postgres.NewStore(pool)
	ledgerSvc := ledger.NewService(store.TxRunner(), store.Stock(), store.Movements(), appMetrics, log)
	reports := report.NewOSStore(cfg.Reports.Dir)
	exportUC := ledger.NewExportUseCase(ledgerSvc, report.NewXLSXExporter(), reports)

	productUC := catalog.NewProductUseCase(store.Products(), store.Movements(), log)
	warehouseUC := catalog.NewWarehouseUseCase(store.Warehouses(), store.StorageUnits(), log)

	router, err := reservation.NewRouter(reservation.RoutingConfig{
		Rule:     cfg.Ledger.RoutingRule,
		Priority: cfg.Ledger.RoutingPriority,
	}, store.Warehouses(), store.StorageUnits(), ledgerSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("expresiones de ruteo")
	}
	orders := reservation.NewManager(store.Orders(), store.Shipments(), ledgerSvc, router, log)
	supplies := supply.NewService(store.Supplies(), store.Warehouses(), store.StorageUnits(), store.Products(), ledgerSvc, log)
	shipments := shipment.NewService(store.Shipments(), store.Orders(), store.Warehouses(), store.StorageUnits(), store.Products(), ledgerSvc, log)
	audits := audit.NewService(store.Inventories(), store.Warehouses(), store.StorageUnits(), store.Products(), ledgerSvc,
		report.NewPDFRenderer(), reports, log).
		WithIncludeReserved(cfg.Ledger.AuditIncludeReserved)
	reconciler := marketplace.NewReconciler(store.Marketplaces(), store.Orders(), store.Listings(), store.Products(),
		orders, appMetrics, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "FBS Core API",
		}))
	} else {
		log.Warn().Str("file", swaggerFile).Msg("sin especificación OpenAPI, /docs deshabilitado")
	}

	deps := httpRouter.RouterDeps{
		Ledger:      ledgerSvc,
		Export:      exportUC,
		Reports:     reports,
		ProductUC:   productUC,
		WarehouseUC: warehouseUC,
		Orders:      orders,
		Supplies:    supplies,
		Shipments:   shipments,
		Audits:      audits,
		Reconciler:  reconciler,
		JWTSecret:   cfg.JWT.Secret,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = adaptor.HTTPHandler(promhttp.Handler())
	}
	httpRouter.Router(app, deps)

	var wg sync.WaitGroup
	if cfg.Sync.Enabled {
		worker := marketplace.NewSyncWorker(store.Marketplaces(), inframarketplace.NewHTTPClient(cfg.Sync.Timeout),
			reconciler, cfg.Sync.Interval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
		log.Info().Dur("interval", cfg.Sync.Interval).Msg("sincronización de marketplaces activa")
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	wg.Wait()

	log.Info().Msg("aplicación detenida")
}
