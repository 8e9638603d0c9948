package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/harborbooks/harborbooks/internal/app"
	"github.com/harborbooks/harborbooks/internal/billing/bills"
	"github.com/harborbooks/harborbooks/internal/classify"
	jobmetrics "github.com/harborbooks/harborbooks/internal/jobs"
	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	"github.com/harborbooks/harborbooks/internal/platform/db"
	"github.com/harborbooks/harborbooks/internal/shared"
	"github.com/harborbooks/harborbooks/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	classifyResolver := classify.NewResolver(nil, cfg.ClassifierTimeout, cfg.ClassifierMinConfidence, logger)
	accountRepo := accounts.NewRepository(pool)
	accountResolver := accounts.NewResolver(accountRepo, classifyResolver, accounts.ResolverConfig{
		APCode:      cfg.DefaultAPCode,
		ARCode:      cfg.DefaultARCode,
		BankCode:    cfg.DefaultBankCode,
		CashCode:    cfg.DefaultCashCode,
		ExpenseCode: cfg.DefaultExpenseCode,
		RevenueCode: cfg.DefaultRevenueCode,
	}, logger)

	auditLogger := shared.NewAuditLogger(pool)
	billService := bills.NewService(bills.NewRepository(pool), accountResolver, auditLogger, logger)
	metrics := jobmetrics.NewMetrics(nil)

	overdueTask, err := jobs.NewOverdueScanTask(jobs.OverdueScanPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBillOverdueScan, Handler: jobs.NewOverdueScanHandler(billService, metrics, logger)},
			{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(pool, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
