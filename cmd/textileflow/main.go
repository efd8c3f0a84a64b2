package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/textileflow/textileflow/internal/app"
	"github.com/textileflow/textileflow/internal/billing/bills"
	"github.com/textileflow/textileflow/internal/billing/invoices"
	"github.com/textileflow/textileflow/internal/expenses"
	"github.com/textileflow/textileflow/internal/inventory"
	"github.com/textileflow/textileflow/internal/ledger"
	"github.com/textileflow/textileflow/internal/observability"
	"github.com/textileflow/textileflow/internal/parties"
	"github.com/textileflow/textileflow/internal/platform/cache"
	"github.com/textileflow/textileflow/internal/platform/db"
	"github.com/textileflow/textileflow/internal/reports"
	"github.com/textileflow/textileflow/internal/shared"
	"github.com/textileflow/textileflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	entryStore := ledger.NewStore(pool)
	reconciler := ledger.NewReconciler(pool)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	partiesRepo := parties.NewRepository(pool)
	partiesService := parties.NewService(logger, partiesRepo, entryStore, reconciler, auditLogger)
	partiesHandler := parties.NewHandler(logger, partiesService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(logger, inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(logger, invoicesRepo, idempotencyStore, auditLogger, reportCache)
	invoicesHandler := invoices.NewHandler(logger, invoicesService)

	billsRepo := bills.NewRepository(pool)
	billsService := bills.NewService(logger, billsRepo, idempotencyStore, auditLogger, reportCache)
	billsHandler := bills.NewHandler(logger, billsService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(logger, reportsRepo, reportCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(logger, expensesRepo, auditLogger)
	expensesHandler := expenses.NewHandler(logger, expensesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PartiesHandler:   partiesHandler,
		InventoryHandler: inventoryHandler,
		InvoicesHandler:  invoicesHandler,
		BillsHandler:     billsHandler,
		ReportsHandler:   reportsHandler,
		ExpensesHandler:  expensesHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
