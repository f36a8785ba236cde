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

	httptransport "github.com/spec-kit/event-service/internal/api/http"
	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/config"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/persistence"
	"github.com/spec-kit/event-service/internal/repository"
	"github.com/spec-kit/event-service/internal/repository/memory"
	"github.com/spec-kit/event-service/internal/service"
	"github.com/spec-kit/event-service/internal/worker"
)

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
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo  repository.UserRepository
		eventRepo repository.EventRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.Pool)
		eventRepo = repository.NewEventRepository(pg.Pool)
	} else {
		store := memory.NewStore()
		userRepo = store.Users()
		eventRepo = store.Events()
	}

	var throttle service.LoginThrottle
	if redis.Enabled() {
		throttle = repository.NewLoginAttemptRepository(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout())
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init password hasher", zap.Error(err))
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTTL(),
		RefreshTTL: cfg.Auth.RefreshTTL(),
	})
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}

	metrics := observability.NewMetrics("event_service")
	dispatcher := events.NewInMemoryDispatcher()

	var publisher *events.AMQPPublisher
	if cfg.AMQP.URL != "" {
		conn, err := events.DialAMQP(cfg.AMQP.URL, 5, 2*time.Second)
		if err != nil {
			logger.Fatal("failed to connect amqp", zap.Error(err))
		}
		publisher, err = events.NewAMQPPublisher(conn, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Fatal("failed to init amqp publisher", zap.Error(err))
		}
		defer publisher.Close()
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger), dispatcher, publisher)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		EventRepo:  eventRepo,
		Hasher:     hasher,
		Tokens:     tokens,
		Throttle:   throttle,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	subscriptionService := service.NewSubscriptionService(service.SubscriptionDependencies{
		EventRepo:  eventRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	eventService := service.NewEventService(service.EventDependencies{
		EventRepo:  eventRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	// Handlers keep path params past the request (membership keys, metric
	// labels), so fiber must not hand out views into its reused buffers.
	app := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:             handlers.NewUsersHandler(authService),
		Events:            handlers.NewEventsHandler(eventService, subscriptionService),
		AuthMiddleware:    auth.NewAuthMiddleware(authService),
		CredentialLimiter: httptransport.NewCredentialLimiter(cfg.RateLimit),
		Metrics:           metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
