package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/notifyhq/notify-engine/internal/config"
	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/infra/postgresql"
	"github.com/notifyhq/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/notifyhq/notify-engine/internal/infra/redis"
	"github.com/notifyhq/notify-engine/internal/observability"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/repository"
	"github.com/notifyhq/notify-engine/internal/service"
	"github.com/notifyhq/notify-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	notificationRepo := repository.NewGormNotificationRepo(db)
	channelRepo := repository.NewGormChannelRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	registry := service.NewStoreChannelRegistry(channelRepo)

	metrics := observability.NewMetrics()

	transports := transport.NewMux().
		Register(domain.ChannelTypeEmail, transport.NewEmailTransport()).
		Register(domain.ChannelTypeWebhook, transport.NewWebhookTransport())

	worker, err := service.NewDeliveryWorker(
		notificationRepo,
		channelRepo,
		attemptRepo,
		consumer,
		transports,
		limiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("delivery worker init failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	scheduler, err := service.NewRetryScheduler(attemptRepo, service.RetrySchedulerConfig{
		BaseDelay: cfg.RetryBaseDelay(),
	}, logger)
	if err != nil {
		logger.Fatal("retry scheduler init failed", zap.Error(err))
	}

	sweeper, err := service.NewRetrySweeper(
		attemptRepo,
		notificationRepo,
		registry,
		scheduler,
		publisher,
		cfg.SweepInterval(),
		logger,
	)
	if err != nil {
		logger.Fatal("retry sweeper init failed", zap.Error(err))
	}
	sweeper.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Start(groupCtx)
	})
	group.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	logger.Info("worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("rateLimitPerSec", cfg.RateLimitPerSec),
	)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("worker stopped")
}
