package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborbooks/harborbooks/internal/app"
	"github.com/harborbooks/harborbooks/internal/auth"
	"github.com/harborbooks/harborbooks/internal/billing/attachments"
	"github.com/harborbooks/harborbooks/internal/billing/bills"
	"github.com/harborbooks/harborbooks/internal/billing/invoices"
	"github.com/harborbooks/harborbooks/internal/billing/receipts"
	"github.com/harborbooks/harborbooks/internal/classify"
	"github.com/harborbooks/harborbooks/internal/ledger/accounts"
	"github.com/harborbooks/harborbooks/internal/ledger/journals"
	"github.com/harborbooks/harborbooks/internal/observability"
	"github.com/harborbooks/harborbooks/internal/platform/cache"
	"github.com/harborbooks/harborbooks/internal/platform/db"
	"github.com/harborbooks/harborbooks/internal/shared"
)

func main() {
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, "harbor_session", cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

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
	accountService := accounts.NewService(accountRepo, accountResolver)

	journalService := journals.NewService(journals.NewRepository(pool), auditLogger)
	billService := bills.NewService(bills.NewRepository(pool), accountResolver, auditLogger, logger)
	invoiceService := invoices.NewService(invoices.NewRepository(pool), accountResolver, auditLogger, logger)

	store, err := attachments.NewFileStore(cfg.AttachmentDir)
	if err != nil {
		logger.Error("init attachment store", slog.Any("error", err))
		os.Exit(1)
	}
	attachmentService := attachments.NewService(attachments.NewRepository(pool), store, auditLogger, logger)

	receiptService := receipts.NewService(billService, receipts.NewVendorRepository(pool), accountResolver, logger)

	authService := auth.NewService(auth.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authService, sessions),
		AuthMiddleware:     auth.Middleware{Sessions: sessions, Logger: logger},
		AccountsHandler:    accounts.NewHandler(logger, accountService),
		JournalsHandler:    journals.NewHandler(logger, journalService),
		BillsHandler:       bills.NewHandler(logger, billService, attachmentService),
		InvoicesHandler:    invoices.NewHandler(logger, invoiceService),
		AttachmentsHandler: attachments.NewHandler(logger, attachmentService),
		ReceiptsHandler:    receipts.NewHandler(logger, receiptService),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
