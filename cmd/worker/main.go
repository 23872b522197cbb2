package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ispbooks/ispbooks/internal/app"
	"github.com/ispbooks/ispbooks/internal/bank"
	"github.com/ispbooks/ispbooks/internal/cashbook"
	"github.com/ispbooks/ispbooks/internal/coa"
	"github.com/ispbooks/ispbooks/internal/dashboard"
	"github.com/ispbooks/ispbooks/internal/ledger"
	"github.com/ispbooks/ispbooks/internal/platform/cache"
	"github.com/ispbooks/ispbooks/internal/recon"
	"github.com/ispbooks/ispbooks/internal/shared"
	"github.com/ispbooks/ispbooks/internal/uisp"
	"github.com/ispbooks/ispbooks/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	roles := coa.DefaultRoles()

	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger, logger)
	reconService := recon.NewService(recon.NewRepository(pool), auditLogger, logger)
	bankService := bank.NewService(bank.NewRepository(pool), ledgerService, roles, logger)
	cashbookService := cashbook.NewService(cashbook.NewRepository(pool), ledgerService, roles, cfg.CashOpeningBalance, logger)

	uispClient := uisp.NewClient(cfg.UISPBaseURL, cfg.UISPToken)
	uispService := uisp.NewService(uispClient, uisp.NewRepository(pool), ledgerService, cashbookService, roles, logger)

	dashboardCache := cache.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), dashboardCache, cfg.CashOpeningBalance, logger)

	reconJob := jobs.NewReconAutoRunJob(bankService, reconService, logger)
	syncJob := jobs.NewUispSyncJob(uispService, logger)
	warmupJob := jobs.NewDashboardWarmupJob(dashboardService, logger)

	reconTask, err := jobs.NewReconAutoRunTask(0)
	if err != nil {
		logger.Error("build recon task", slog.Any("error", err))
		os.Exit(1)
	}
	syncTask, err := jobs.NewUispSyncTask(24)
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewDashboardWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconAutoRun, Handler: reconJob.Handle},
			{Type: jobs.TaskUispSync, Handler: syncJob.Handle},
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: reconTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
