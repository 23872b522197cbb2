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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ispbooks/ispbooks/internal/app"
	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/dashboard"
	"github.com/ispbooks/ispbooks/internal/expense"
	"github.com/ispbooks/ispbooks/internal/ledger"
	"github.com/ispbooks/ispbooks/internal/platform/cache"
	"github.com/ispbooks/ispbooks/internal/recon"
	"github.com/ispbooks/ispbooks/internal/shared"
	"github.com/ispbooks/ispbooks/internal/uisp"
	"github.com/ispbooks/ispbooks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
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

	auditLogger := shared.NewAuditLogger(pool)
	roles := coa.DefaultRoles()

	coaService := coa.NewService(coa.NewRepository(pool), roles)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger, logger)
	reconService := recon.NewService(recon.NewRepository(pool), auditLogger, logger)
	bankService := bank.NewService(bank.NewRepository(pool), ledgerService, roles, logger)
	cashbookService := cashbook.NewService(cashbook.NewRepository(pool), ledgerService, roles, cfg.CashOpeningBalance, logger)
	expenseService := expense.NewService(expense.NewRepository(pool), ledgerService, cashbookService, bankService,
		roles, cfg.ExpenseApprovalThreshold, cfg.ExpenseRequireApproval, logger)

	uispClient := uisp.NewClient(cfg.UISPBaseURL, cfg.UISPToken)
	uispService := uisp.NewService(uispClient, uisp.NewRepository(pool), ledgerService, cashbookService, roles, logger)

	dashboardCache := cache.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), dashboardCache, cfg.CashOpeningBalance, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AccountsHandler:  coa.NewHandler(logger, coaService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		ReconHandler:     recon.NewHandler(logger, reconService),
		BankHandler:      bank.NewHandler(logger, bankService),
		CashbookHandler:  cashbook.NewHandler(logger, cashbookService),
		ExpenseHandler:   expense.NewHandler(logger, expenseService),
		UispHandler:      uisp.NewHandler(logger, uispService),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
