package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusantara-erp/nusantara-erp/internal/accounting/accounts"
	"github.com/nusantara-erp/nusantara-erp/internal/accounting/ledger"
	"github.com/nusantara-erp/nusantara-erp/internal/app"
	"github.com/nusantara-erp/nusantara-erp/internal/finance/assets"
	"github.com/nusantara-erp/nusantara-erp/internal/observability"
	"github.com/nusantara-erp/nusantara-erp/internal/platform/db"
	"github.com/nusantara-erp/nusantara-erp/internal/qc"
	"github.com/nusantara-erp/nusantara-erp/internal/sales/quotations"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
	"github.com/nusantara-erp/nusantara-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	metrics := observability.NewMetrics()
	bus := shared.NewBus(logger)
	numbers := shared.NewNumberGenerator(pool)

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	ledgerRepo := ledger.NewRepository(pool)
	poster := ledger.NewPoster(ledgerRepo, accountsService, bus, metrics)

	qcRepo := qc.NewRepository(pool)
	returnAutomation := qc.NewReturnAutomation(qcRepo, poster, numbers, logger)
	assetService := assets.NewService(assets.NewRepository(pool), poster, logger)
	quotationService := quotations.NewService(quotations.NewRepository(pool), numbers, bus, logger)
	integrityScanner := ledger.NewIntegrityScanner(pool)

	returnJob := jobs.NewPurchaseReturnJob(returnAutomation, metrics, logger)
	depreciationJob := jobs.NewDepreciationJob(assetService, metrics, logger)
	expiryJob := jobs.NewQuotationExpiryJob(quotationService, metrics, logger)
	integrityJob := jobs.NewLedgerIntegrityJob(integrityScanner, metrics, logger)

	depreciationTask, err := jobs.NewMonthlyDepreciationTask(time.Time{})
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}
	expiryTask, err := jobs.NewQuotationExpiryTask(time.Now())
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(time.Now())
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPurchaseReturnAutomation, Handler: returnJob.Handle},
			{Type: jobs.TaskMonthlyDepreciation, Handler: depreciationJob.Handle},
			{Type: jobs.TaskQuotationExpiry, Handler: expiryJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 1 * *", Task: depreciationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
