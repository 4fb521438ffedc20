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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/recon"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/reports"
	"github.com/nusantara-erp/nusantara-erp/internal/app"
	"github.com/nusantara-erp/nusantara-erp/internal/cashbank"
	"github.com/nusantara-erp/nusantara-erp/internal/delivery"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/assets"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/deposits"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/payments"
	"github.com/nusantara-erp/nusantara-erp/internal/inventory"
	"github.com/nusantara-erp/nusantara-erp/internal/manufacturing"
	"github.com/nusantara-erp/nusantara-erp/internal/observability"
	"github.com/nusantara-erp/nusantara-erp/internal/platform/db"
	"github.com/nusantara-erp/nusantara-erp/internal/qc"
	"github.com/nusantara-erp/nusantara-erp/internal/sales/quotations"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
	"github.com/nusantara-erp/nusantara-erp/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	bus := shared.NewBus(logger)
	numbers := shared.NewNumberGenerator(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	ledgerRepo := ledger.NewRepository(pool)
	poster := ledger.NewPoster(ledgerRepo, accountsService, bus, metrics)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), idempotency, logger)
	inventoryService.AllowNegativeStock(cfg.AllowNegativeStock)

	cashbankService := cashbank.NewService(cashbank.NewRepository(pool), poster, accountsService, numbers, bus, logger)
	deliveryService := delivery.NewService(delivery.NewRepository(pool), poster, inventoryService, inventory.NewTxRepository, approvals, numbers, bus, logger)
	quotationService := quotations.NewService(quotations.NewRepository(pool), numbers, bus, logger)
	manufacturingService := manufacturing.NewService(manufacturing.NewRepository(pool), poster, inventoryService, inventory.NewTxRepository, accountsService, numbers, bus, logger)

	qcRepo := qc.NewRepository(pool)
	qcService := qc.NewService(qcRepo, numbers, bus, logger)
	returnAutomation := qc.NewReturnAutomation(qcRepo, poster, numbers, logger)

	paymentService := payments.NewService(payments.NewRepository(pool), cashbankService, approvals, numbers, bus, logger)
	depositService := deposits.NewService(deposits.NewRepository(pool), poster, accountsService, numbers, bus, logger)
	assetService := assets.NewService(assets.NewRepository(pool), poster, logger)
	reconEngine := recon.NewEngine(recon.NewRepository(pool), logger)

	reportCache := reports.NewCache(redisClient, cfg.CacheTTL)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache, logger)
	reportService.SubscribeInvalidation(bus)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AccountsHandler:      accounts.NewHandler(logger, accountsService),
		LedgerHandler:        ledger.NewHandler(logger, ledgerRepo, poster),
		ReconHandler:         recon.NewHandler(logger, reconEngine),
		ReportsHandler:       reports.NewHandler(logger, reportService),
		CashBankHandler:      cashbank.NewHandler(logger, cashbankService),
		DeliveryHandler:      delivery.NewHandler(logger, deliveryService),
		QuotationsHandler:    quotations.NewHandler(logger, quotationService),
		ManufacturingHandler: manufacturing.NewHandler(logger, manufacturingService),
		QCHandler:            qc.NewHandler(logger, qcService, returnAutomation),
		PaymentsHandler:      payments.NewHandler(logger, paymentService),
		DepositsHandler:      deposits.NewHandler(logger, depositService),
		AssetsHandler:        assets.NewHandler(logger, assetService),
		InventoryHandler:     inventory.NewHandler(logger, inventoryService),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
