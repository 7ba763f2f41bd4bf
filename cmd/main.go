package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockflow/internal/caching"
	"stockflow/internal/config"
	"stockflow/internal/handlers"
	"stockflow/internal/jobs"
	"stockflow/internal/middleware"
	"stockflow/internal/models"
	"stockflow/internal/repositories"
	"stockflow/internal/services"
	"stockflow/pkg/database"
	"stockflow/pkg/logger"
	"stockflow/pkg/telemetry"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("STOCKFLOW_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("stockflow stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			zlog.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	cache := caching.NewNoopQuantityCache()
	if cfg.Redis.Enabled {
		client := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zlog)
		defer client.Close()
		cache = caching.NewRedisQuantityCache(client, cfg.Redis.Prefix, cfg.Redis.TTL.Duration, zlog)
	}

	txm := repositories.NewTxManager(pool, cfg.Database.MaxTxAttempts, cfg.Database.InitialBackoff.Duration, zlog)

	// Repositories
	inventoryRepo := repositories.NewInventoryRepository()
	sequenceRepo := repositories.NewSequenceRepository()
	storeRepo := repositories.NewStoreRepository()
	variantRepo := repositories.NewVariantRepository()
	purchaseRepo := repositories.NewPurchaseRepository()
	orderItemRepo := repositories.NewOrderItemRepository()
	orderRepo := repositories.NewOrderRepository(orderItemRepo)
	transferRepo := repositories.NewTransferRepository()

	// Services
	sequenceSvc := services.NewSequenceService(txm, pool, sequenceRepo, zlog)
	ledger := services.NewInventoryLedger(txm, pool, inventoryRepo, cache, zlog)
	purchaseSvc := services.NewPurchaseService(services.PurchaseServiceDeps{
		TxManager:   txm,
		DB:          pool,
		Purchases:   purchaseRepo,
		Stores:      storeRepo,
		Variants:    variantRepo,
		Inventory:   inventoryRepo,
		Ledger:      ledger,
		Sequences:   sequenceSvc,
		OrderPrefix: cfg.Sequence.PurchasePrefix,
		Logger:      zlog,
	})
	orderSvc := services.NewOrderService(services.OrderServiceDeps{
		TxManager:   txm,
		DB:          pool,
		Orders:      orderRepo,
		Items:       orderItemRepo,
		Stores:      storeRepo,
		Variants:    variantRepo,
		Ledger:      ledger,
		Purchases:   purchaseSvc,
		Sequences:   sequenceSvc,
		OrderPrefix: cfg.Sequence.OrderPrefix,
		Policy:      models.FulfillmentPolicy(cfg.Fulfillment.Policy),
		Logger:      zlog,
	})
	purchaseSvc.RegisterHook(orderSvc)
	transferSvc := services.NewTransferService(txm, pool, transferRepo, storeRepo, variantRepo, ledger, zlog)

	// Background jobs
	scheduler, err := jobs.NewJobScheduler(zlog)
	if err != nil {
		return err
	}
	if cfg.Reconciliation.Enabled {
		job := jobs.NewReconciliationJob(ledger, cfg.Reconciliation.Limit, zlog)
		if err := scheduler.Schedule(ctx, cfg.Reconciliation.Schedule, job); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			zlog.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	// HTTP
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		zlog.Warn("no JWT secret configured, using a generated one; tokens will not survive restarts")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(zlog))
	e.Use(echoMiddleware.RemoveTrailingSlash())

	health := handlers.NewHealthHandlers(pool, cache, version)
	e.GET("/health", health.Liveness)
	e.GET("/health/detailed", health.HealthCheck)

	v1 := e.Group("/v1")
	v1.Use(middleware.ActorJWT(jwtSecret, cfg.Auth.Required))
	registerRoutes(v1,
		handlers.NewPurchaseHandlers(purchaseSvc),
		handlers.NewOrderHandlers(orderSvc),
		handlers.NewTransferHandlers(transferSvc),
		handlers.NewInventoryHandlers(ledger),
		handlers.NewSequenceHandlers(sequenceSvc),
	)

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("stockflow starting", zap.String("version", version), zap.Int("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func registerRoutes(g *echo.Group, purchases *handlers.PurchaseHandlers, orders *handlers.OrderHandlers,
	transfers *handlers.TransferHandlers, inventory *handlers.InventoryHandlers, sequences *handlers.SequenceHandlers) {
	g.POST("/purchases", purchases.CreatePurchase)
	g.GET("/purchases/:id", purchases.GetPurchase)
	g.PUT("/purchases/:id/status", purchases.UpdatePurchaseStatus)
	g.POST("/purchases/:id/revert", purchases.RevertPurchase)
	g.DELETE("/purchases/:id", purchases.DeletePurchase)

	g.POST("/orders", orders.CreateOrder)
	g.GET("/orders/:id", orders.GetOrder)
	g.PUT("/orders/:id/status", orders.UpdateOrderStatus)
	g.POST("/orders/:id/items/:item_id/fulfill", orders.FulfillOrderItem)

	g.POST("/transfers", transfers.CreateTransfer)
	g.GET("/transfers/:id", transfers.GetTransfer)
	g.PUT("/transfers/:id/status", transfers.UpdateTransferStatus)

	g.GET("/inventory/discrepancies", inventory.ListDiscrepancies)
	g.GET("/inventory/:variant_id/stores/:store_id", inventory.GetQuantity)
	g.GET("/inventory/:variant_id/stores/:store_id/history", inventory.GetHistory)
	g.GET("/inventory/:variant_id/stores/:store_id/reconcile", inventory.Reconcile)
	g.POST("/inventory/:variant_id/stores/:store_id/adjust", inventory.AdjustStock)

	g.GET("/sequences/:prefix", sequences.Current)
	g.POST("/sequences/:prefix/next", sequences.NextNumber)
	g.POST("/sequences/:prefix/batch", sequences.NextBatch)
	g.PUT("/sequences/:prefix/reset", sequences.Reset)
}
