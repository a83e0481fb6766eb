package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/notifyhq/notify-engine/internal/config"
	"github.com/notifyhq/notify-engine/internal/handler"
	"github.com/notifyhq/notify-engine/internal/infra/postgresql"
	"github.com/notifyhq/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/notifyhq/notify-engine/internal/infra/redis"
	"github.com/notifyhq/notify-engine/internal/observability"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/repository"
	"github.com/notifyhq/notify-engine/internal/service"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	notificationRepo := repository.NewGormNotificationRepo(db)
	channelRepo := repository.NewGormChannelRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	registry := service.NewStoreChannelRegistry(channelRepo)

	metrics := observability.NewMetrics()

	notificationService, err := service.NewNotificationService(notificationRepo, logger)
	if err != nil {
		logger.Fatal("notification service init failed", zap.Error(err))
	}
	channelService, err := service.NewChannelService(channelRepo, logger)
	if err != nil {
		logger.Fatal("channel service init failed", zap.Error(err))
	}
	deliveryRouter, err := service.NewDeliveryRouter(notificationRepo, attemptRepo, registry, publisher, cfg.MaxDeliveryAttempts, logger)
	if err != nil {
		logger.Fatal("delivery router init failed", zap.Error(err))
	}
	deliveryRouter.SetMetrics(metrics)
	aggregator, err := service.NewStatusAggregator(notificationRepo, attemptRepo, registry)
	if err != nil {
		logger.Fatal("status aggregator init failed", zap.Error(err))
	}
	scheduler, err := service.NewRetryScheduler(attemptRepo, service.RetrySchedulerConfig{
		BaseDelay: cfg.RetryBaseDelay(),
	}, logger)
	if err != nil {
		logger.Fatal("retry scheduler init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		logger.Fatal("notification routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterChannelRoutes(app, channelService); err != nil {
		logger.Fatal("channel routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterDeliveryRoutes(app, deliveryRouter, aggregator, scheduler); err != nil {
		logger.Fatal("delivery routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Error("api listener stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
}
