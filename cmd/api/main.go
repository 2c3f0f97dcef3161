package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/newsletter-dispatch/internal/config"
	"github.com/kursadbilgin/newsletter-dispatch/internal/handler"
	"github.com/kursadbilgin/newsletter-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/newsletter-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/newsletter-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/newsletter-dispatch/internal/mailtmpl"
	"github.com/kursadbilgin/newsletter-dispatch/internal/observability"
	"github.com/kursadbilgin/newsletter-dispatch/internal/provider"
	"github.com/kursadbilgin/newsletter-dispatch/internal/queue"
	"github.com/kursadbilgin/newsletter-dispatch/internal/repository"
	"github.com/kursadbilgin/newsletter-dispatch/internal/service"
	"github.com/kursadbilgin/newsletter-dispatch/internal/token"
	"github.com/kursadbilgin/newsletter-dispatch/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const resultConsumerPrefetch = 10

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	broker, err := queue.NewBroker(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer broker.Close()

	metrics := observability.NewMetrics()

	emailProvider, err := newEmailProvider(cfg, rdb, logger)
	if err != nil {
		logger.Fatal("email provider initialization failed", zap.Error(err))
	}

	renderer, err := mailtmpl.NewRenderer(cfg.SiteBaseURL(), cfg.BrandName)
	if err != nil {
		logger.Fatal("template initialization failed", zap.Error(err))
	}

	subscriberRepo := repository.NewGormSubscriberRepo(db)
	attemptRepo := repository.NewGormDeliveryAttemptRepo(db, cfg.ResultChunkSize)
	contactRepo := repository.NewGormContactRepo(db)

	recorder, err := service.NewResultRecorder(queue.NewRabbitMQPublisher(broker), attemptRepo, cfg.ResultChunkSize, logger)
	if err != nil {
		logger.Fatal("result recorder initialization failed", zap.Error(err))
	}
	recorder.SetMetrics(metrics)

	worker, err := service.NewResultWorker(
		queue.NewRabbitMQConsumer(broker, resultConsumerPrefetch, logger),
		attemptRepo,
		cfg.ResultWorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("result worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	dispatcher, err := service.NewCampaignDispatcher(subscriberRepo, emailProvider, renderer, recorder, service.DispatcherConfig{
		From:       cfg.FromEmail,
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay(),
	}, logger)
	if err != nil {
		logger.Fatal("campaign dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	subscriptions, err := service.NewSubscriptionService(subscriberRepo, token.NewUUIDIssuer(), emailProvider, renderer, cfg.FromEmail, logger)
	if err != nil {
		logger.Fatal("subscription service initialization failed", zap.Error(err))
	}
	subscriptions.SetMetrics(metrics)

	contacts, err := service.NewContactService(contactRepo, emailProvider, renderer, service.ContactConfig{
		From:       cfg.ContactFromEmail,
		AdminEmail: cfg.AdminEmail,
	}, logger)
	if err != nil {
		logger.Fatal("contact service initialization failed", zap.Error(err))
	}
	contacts.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.SiteOrigin(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(requestid.New(requestid.Config{Header: observability.RequestIDHeader}))
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	if err := handler.RegisterSubscriptionRoutes(app, subscriptions); err != nil {
		logger.Fatal("subscription routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterCampaignRoutes(app, dispatcher, attemptRepo, cfg.AdminAPIKey); err != nil {
		logger.Fatal("campaign routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterContactRoutes(app, contacts); err != nil {
		logger.Fatal("contact routes registration failed", zap.Error(err))
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("newsletter-dispatch api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		var shutdownErr error
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http shutdown: %w", err))
		}
		if err := subscriptions.Wait(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("pending welcome emails: %w", err))
		}
		if err := recorder.Wait(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("pending delivery results: %w", err))
		}
		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("newsletter-dispatch api stopped with error", zap.Error(err))
		return
	}
	logger.Info("newsletter-dispatch api stopped")
}

// newEmailProvider builds Resend, optionally behind the shared Redis rate
// limit, with the circuit breaker outermost.
func newEmailProvider(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (provider.Provider, error) {
	var p provider.Provider

	resend, err := provider.NewResendProvider(cfg.ResendBaseURL, cfg.ResendAPIKey)
	if err != nil {
		return nil, err
	}
	p = resend

	if cfg.ProviderRateLimitPerSec > 0 {
		limiter, err := infraredis.NewProviderRateLimiter(rdb, cfg.ProviderRateLimitPerSec)
		if err != nil {
			return nil, err
		}
		limited, err := provider.NewRateLimitedProvider(p, limiter)
		if err != nil {
			return nil, err
		}
		p = limited
	}

	breaker, err := provider.NewBreakerProvider(p, provider.DefaultBreakerConfig(), logger)
	if err != nil {
		return nil, err
	}
	return breaker, nil
}
