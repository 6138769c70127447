package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/rentique-erp/rentique-erp/internal/app"
	"github.com/rentique-erp/rentique-erp/internal/calendar"
	"github.com/rentique-erp/rentique-erp/internal/cashbox"
	"github.com/rentique-erp/rentique-erp/internal/custody"
	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/observability"
	"github.com/rentique-erp/rentique-erp/internal/orders"
	"github.com/rentique-erp/rentique-erp/internal/platform/cache"
	"github.com/rentique-erp/rentique-erp/internal/platform/db"
	"github.com/rentique-erp/rentique-erp/internal/shared"
	"github.com/rentique-erp/rentique-erp/jobs"
)

type custodyGate struct {
	svc *custody.Service
}

func (g *custodyGate) HasOpen(ctx context.Context, orderID int64) (bool, error) {
	return g.svc.HasOpen(ctx, orderID)
}

func main() {
	_ = godotenv.Load()

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

	metrics := observability.NewMetrics()
	locks := shared.NewMutex(redisClient)
	audit := shared.NewAuditLogger(pool)

	calendarSvc := calendar.NewService(
		calendar.NewRepository(pool),
		locks,
		calendar.NewAvailabilityCache(redisClient, 5*time.Minute),
		metrics,
		logger,
	)
	inventorySvc := inventory.NewService(inventory.NewRepository(pool), logger)
	cashboxSvc := cashbox.NewService(cashbox.NewRepository(pool), locks, audit, logger)

	gate := &custodyGate{}
	ordersSvc := orders.NewService(
		orders.NewRepository(pool),
		calendarSvc,
		gate,
		orders.NewClientDirectory(pool),
		inventorySvc,
		audit,
		nil,
		logger,
	)
	gate.svc = custody.NewService(custody.NewRepository(pool), ordersSvc, audit, logger)

	overdueTask, err := jobs.NewOverdueScanTask(time.Time{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueScan, Handler: jobs.NewOverdueScanHandler(ordersSvc, metrics, logger)},
			{Type: jobs.TaskCashboxAudit, Handler: jobs.NewCashboxAuditHandler(cashboxSvc, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewCashboxAuditTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
