package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-countdown/internal/api/http"
	"github.com/spec-kit/sla-countdown/internal/api/http/handlers"
	"github.com/spec-kit/sla-countdown/internal/auth"
	"github.com/spec-kit/sla-countdown/internal/config"
	"github.com/spec-kit/sla-countdown/internal/countdown"
	"github.com/spec-kit/sla-countdown/internal/events"
	"github.com/spec-kit/sla-countdown/internal/observability"
	"github.com/spec-kit/sla-countdown/internal/persistence"
	"github.com/spec-kit/sla-countdown/internal/repository"
	"github.com/spec-kit/sla-countdown/internal/service"
	"github.com/spec-kit/sla-countdown/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	var snapshotRepo repository.SLASnapshotRepository
	if pg.PoolHandle() != nil {
		snapshotRepo = repository.NewSLASnapshotRepository(pg.PoolHandle())
	}

	deps := service.CountdownDependencies{
		EngineOptions: countdown.Options{
			TickInterval:          cfg.Countdown.TickInterval(),
			ResyncIntervalTicks:   cfg.Countdown.ResyncIntervalTicks,
			DriftToleranceSeconds: cfg.Countdown.DriftToleranceSeconds,
			Metrics:               metrics,
		},
		SnapshotRepo: snapshotRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	}
	if publisher := worker.NewRedisSnapshotPublisher(redis, cfg.Redis.SnapshotChannel); publisher != nil {
		deps.Publisher = publisher
	}
	countdowns := service.NewCountdownService(deps)

	workers := worker.NewGroup(logger)
	poller := worker.NewSnapshotPoller(countdowns, snapshotRepo, cfg.Feeder.PollInterval(), cfg.Feeder.BatchSize, logger)
	workers.Go(ctx, "sla-snapshot-poller", func(ctx context.Context) error {
		poller.Run(ctx)
		return nil
	})
	subscriber := worker.NewSnapshotSubscriber(redis, cfg.Redis.SnapshotChannel, countdowns, logger)
	workers.Go(ctx, "sla-snapshot-subscriber", subscriber.Run)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
		handlers.DependencyCheck{Name: "postgres", Ping: pg.Ping, Required: cfg.Postgres.DSN != ""},
		handlers.DependencyCheck{Name: "redis", Ping: redis.Ping, Required: cfg.Redis.Addr != ""},
	)
	countdownHandler := handlers.NewCountdownHandler(countdowns, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Countdown:      countdownHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	countdowns.Shutdown()
	cancel()
	workers.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
