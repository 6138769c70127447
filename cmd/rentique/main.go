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
	"github.com/joho/godotenv"

	"github.com/rentique-erp/rentique-erp/internal/app"
	"github.com/rentique-erp/rentique-erp/internal/calendar"
	"github.com/rentique-erp/rentique-erp/internal/cashbox"
	"github.com/rentique-erp/rentique-erp/internal/custody"
	"github.com/rentique-erp/rentique-erp/internal/inventory"
	"github.com/rentique-erp/rentique-erp/internal/observability"
	"github.com/rentique-erp/rentique-erp/internal/orders"
	"github.com/rentique-erp/rentique-erp/internal/payments"
	"github.com/rentique-erp/rentique-erp/internal/platform/cache"
	"github.com/rentique-erp/rentique-erp/internal/platform/db"
	"github.com/rentique-erp/rentique-erp/internal/shared"
	"github.com/rentique-erp/rentique-erp/internal/transfers"
	"github.com/rentique-erp/rentique-erp/jobs"
)

// custodyGate defers to the custody service once both sides of the
// orders<->custody dependency exist.
type custodyGate struct {
	svc *custody.Service
}

func (g *custodyGate) HasOpen(ctx context.Context, orderID int64) (bool, error) {
	return g.svc.HasOpen(ctx, orderID)
}

func main() {
	_ = godotenv.Load()

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
	idem := shared.NewIdempotencyStore(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)

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
		idem,
		logger,
	)
	custodySvc := custody.NewService(custody.NewRepository(pool), ordersSvc, audit, logger)
	gate.svc = custodySvc

	paymentsSvc := payments.NewService(payments.NewRepository(pool), ordersSvc, cashboxSvc, audit, idem, logger)
	transfersSvc := transfers.NewService(transfers.NewRepository(pool), inventorySvc, approvals, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CalendarHandler:  calendar.NewHandler(logger, calendarSvc),
		InventoryHandler: inventory.NewHandler(logger, inventorySvc),
		OrdersHandler:    orders.NewHandler(logger, ordersSvc),
		PaymentsHandler:  payments.NewHandler(logger, paymentsSvc),
		CustodyHandler:   custody.NewHandler(logger, custodySvc),
		CashboxHandler:   cashbox.NewHandler(logger, cashboxSvc),
		TransfersHandler: transfers.NewHandler(logger, transfersSvc),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
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
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
