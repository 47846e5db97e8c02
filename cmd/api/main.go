package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httptransport "github.com/fixzit/fm-service/internal/api/http"
	"github.com/fixzit/fm-service/internal/api/http/handlers"
	"github.com/fixzit/fm-service/internal/auth"
	"github.com/fixzit/fm-service/internal/calendar"
	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/finance"
	"github.com/fixzit/fm-service/internal/idempotency"
	"github.com/fixzit/fm-service/internal/observability"
	"github.com/fixzit/fm-service/internal/persistence"
	"github.com/fixzit/fm-service/internal/repository"
	"github.com/fixzit/fm-service/internal/service"
	"github.com/fixzit/fm-service/internal/worker"
)

const tokenTTLMinutes = 60

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy, err := cfg.SLA.Policy()
	if err != nil {
		logger.Fatal("invalid sla policy", zap.Error(err))
	}
	if _, err := cfg.SLA.DefaultCalendar(""); err != nil {
		logger.Fatal("invalid default calendar", zap.Error(err))
	}

	store, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	var redis *persistence.Redis
	if cfg.Idempotency.Backend == "redis" || cfg.Notification.Backend == "redis" {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
	}

	idemStore, err := idempotencyStore(ctx, cfg, store, redis, logger)
	if err != nil {
		logger.Fatal("failed to init idempotency store", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	var enqueuer events.Enqueuer = dispatcher
	var queue *events.RedisQueue
	if cfg.Notification.Backend == "redis" {
		queue = events.NewRedisQueue(redis.Client, cfg.Notification.QueueKey)
		enqueuer = queue
	}

	metrics := observability.NewMetrics()
	deps := service.Dependencies{
		Store:   store,
		Guard:   idempotency.NewGuard(idemStore, cfg.Idempotency.TTL(), logger),
		Events:  enqueuer,
		Logger:  logger,
		Metrics: metrics,
	}
	calendars := service.NewCalendarService(store, calendar.NewRegistry(), cfg.SLA, nil, logger)
	workOrders := service.NewWorkOrderService(deps, calendars, policy)
	payroll := service.NewPayrollService(deps, finance.NewLedgerPoster())
	quotations := service.NewQuotationService(deps)
	notifications := service.NewNotificationService(dispatcher, deps.Guard, logger, cfg.Notification)

	worker.StartNotificationWorker(ctx, notifications, queue, dispatcher, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tokenTTLMinutes)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	readiness := map[string]handlers.Pinger{"store": store}
	if redis != nil {
		readiness["redis"] = redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Calendar:       handlers.NewCalendarHandler(calendars, nil),
		WorkOrders:     handlers.NewWorkOrdersHandler(workOrders, nil),
		Payroll:        handlers.NewPayrollHandler(payroll),
		Quotations:     handlers.NewQuotationsHandler(quotations),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func idempotencyStore(ctx context.Context, cfg *config.Config, store repository.TxStore, redis *persistence.Redis, logger *zap.Logger) (idempotency.Store, error) {
	switch cfg.Idempotency.Backend {
	case "redis":
		return idempotency.NewRedisStore(redis.Client, "fixzit:idem:"), nil
	case "postgres":
		var pool *pgxpool.Pool
		if pg, ok := store.(*persistence.PostgresStore); ok {
			pool = pg.Pool()
		} else {
			p, err := persistence.NewPostgresPool(ctx, cfg.Postgres, logger)
			if err != nil {
				return nil, err
			}
			if err := persistence.RunMigrations(ctx, p, logger); err != nil {
				p.Close()
				return nil, err
			}
			pool = p
		}
		return idempotency.NewPostgresStore(pool), nil
	}
	logger.Info("using in-memory idempotency store")
	return idempotency.NewMemoryStore(), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
