package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-desk/internal/api/http"
	"github.com/spec-kit/maintenance-desk/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/bot"
	"github.com/spec-kit/maintenance-desk/internal/config"
	"github.com/spec-kit/maintenance-desk/internal/delivery"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/observability"
	"github.com/spec-kit/maintenance-desk/internal/persistence"
	"github.com/spec-kit/maintenance-desk/internal/repository"
	"github.com/spec-kit/maintenance-desk/internal/service"
	"github.com/spec-kit/maintenance-desk/internal/session"
	"github.com/spec-kit/maintenance-desk/internal/worker"
)

type repositories struct {
	accounts    repository.AccountRepository
	assignments repository.AssignmentRepository
	tickets     repository.TicketRepository
	history     repository.TicketHistoryRepository
}

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	repos := newRepositories(pg)
	dependencies := map[string]handlers.Pinger{}
	if pg.Enabled() {
		dependencies["postgres"] = pg
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Bot.SessionBackend == config.SessionBackendRedis {
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb.Client, cfg.Bot.SessionTTL())
		dependencies["redis"] = rdb
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		AccountRepo:    repos.accounts,
		AssignmentRepo: repos.assignments,
		TicketRepo:     repos.tickets,
		Moderators:     cfg.Bot.Moderators,
		Logger:         logger,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.history,
		Metrics:     metrics,
		Logger:      logger,
	})

	var sender delivery.Sender = delivery.NewLogSender(logger)
	if cfg.Notification.WebhookURL != "" {
		sender = delivery.NewWebhookSender(cfg.Notification.WebhookURL, cfg.Notification.Timeout())
	}
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Directory:  directory,
		Sender:     sender,
		Metrics:    metrics,
		Logger:     logger,
		Timeout:    cfg.Notification.Timeout(),
	})
	notifications.RegisterAssignmentHandler()
	notificationWorker := worker.NewNotificationWorker(notifications, logger,
		cfg.Notification.Workers, cfg.Notification.QueueSize)
	notificationWorker.Subscribe(dispatcher)
	notificationWorker.Start(ctx)

	if seeded, err := directory.SeedModerators(ctx); err != nil {
		logger.Error("moderator bootstrap failed", zap.Error(err))
	} else {
		logger.Info("moderator bootstrap done", zap.Int("promoted", seeded))
	}

	engine := bot.NewEngine(bot.EngineDependencies{
		Directory:  directory,
		Lifecycle:  lifecycle,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens)
	var authMiddleware *auth.AuthMiddleware
	if cfg.Auth.GatewaySecretHash != "" {
		authMiddleware = auth.NewAuthMiddleware(tokens)
	} else {
		logger.Warn("AUTH_GATEWAY_SECRET_HASH not set; /v1 is unauthenticated")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Actions:        handlers.NewActionsHandler(engine, logger),
		Tickets:        handlers.NewTicketsHandler(lifecycle),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notificationWorker.Stop()
}

func newRepositories(pg *persistence.Postgres) repositories {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return repositories{
			accounts:    repository.NewAccountRepository(pool),
			assignments: repository.NewAssignmentRepository(pool),
			tickets:     repository.NewTicketRepository(pool),
			history:     repository.NewTicketHistoryRepository(pool),
		}
	}
	return repositories{
		accounts:    repository.NewMemoryAccountRepository(),
		assignments: repository.NewMemoryAssignmentRepository(),
		tickets:     repository.NewMemoryTicketRepository(),
		history:     repository.NewMemoryTicketHistoryRepository(),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
