package service

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/observability"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/ratelimit"
	"github.com/notifyhq/notify-engine/internal/repository"
	"github.com/notifyhq/notify-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkerConcurrency = 4

// DeliveryWorker consumes queued delivery attempts and performs the
// actual transport send, recording the outcome on the attempt row.
type DeliveryWorker struct {
	notifications repository.NotificationRepository
	channels      repository.ChannelRepository
	attempts      repository.AttemptRepository
	consumer      queue.Consumer
	transports    transport.Transport
	limiter       ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
}

func NewDeliveryWorker(
	notifications repository.NotificationRepository,
	channels repository.ChannelRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	transports transport.Transport,
	limiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if channels == nil {
		return nil, fmt.Errorf("channel repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if transports == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if concurrency < 1 {
		concurrency = defaultWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		notifications: notifications,
		channels:      channels,
		attempts:      attempts,
		consumer:      consumer,
		transports:    transports,
		limiter:       limiter,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start blocks consuming every work queue with the configured parallelism
// until ctx is canceled or a consumer fails.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, queueName := range queue.WorkQueueNames() {
		for i := 0; i < w.concurrency; i++ {
			name := queueName
			group.Go(func() error {
				return w.consumer.Consume(groupCtx, name, w.ProcessMessage)
			})
		}
	}

	w.logger.Info("delivery worker started",
		zap.Int("concurrency", w.concurrency),
		zap.Strings("queues", queue.WorkQueueNames()),
	)

	return group.Wait()
}

// ProcessMessage performs one queued send. A nil return acknowledges the
// message; only infrastructure failures are returned for redelivery,
// transport failures are recorded on the attempt instead.
func (w *DeliveryWorker) ProcessMessage(ctx context.Context, msg queue.AttemptMessage) error {
	if err := msg.Validate(); err != nil {
		w.logger.Warn("dropping invalid attempt message", zap.Error(err))
		return nil
	}

	attempt, err := w.attempts.GetByID(ctx, msg.AttemptID)
	if err != nil {
		if domainNotFound(err) {
			w.logger.Warn("attempt no longer exists, dropping message",
				zap.String("attemptId", msg.AttemptID),
			)
			return nil
		}
		return fmt.Errorf("failed to load attempt: %w", err)
	}
	if attempt.Terminal() {
		w.logger.Debug("attempt already terminal, dropping message",
			zap.String("attemptId", attempt.ID),
			zap.String("status", attempt.Status.String()),
		)
		return nil
	}

	notification, err := w.notifications.GetByID(ctx, attempt.NotificationID)
	if err != nil {
		if domainNotFound(err) {
			return w.recordFailure(ctx, attempt, msg.ChannelType, "notification no longer exists", "missing_notification")
		}
		return fmt.Errorf("failed to load notification: %w", err)
	}

	channel, err := w.channels.GetByID(ctx, attempt.ChannelID)
	if err != nil {
		if domainNotFound(err) {
			return w.recordFailure(ctx, attempt, msg.ChannelType, "channel no longer exists", "missing_channel")
		}
		return fmt.Errorf("failed to load channel: %w", err)
	}
	if !channel.Active {
		return w.recordFailure(ctx, attempt, channel.Type, "channel is deactivated", "inactive_channel")
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, queue.QueueName(channel.Type)); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	return w.send(ctx, *notification, *channel, attempt)
}

func (w *DeliveryWorker) send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel, attempt *domain.DeliveryAttempt) error {
	channelType := channel.Type.String()

	if w.metrics != nil {
		w.metrics.IncWorkerInFlight(channelType)
		defer w.metrics.DecWorkerInFlight(channelType)
	}

	start := w.now()
	receipt, sendErr := w.transports.Send(ctx, notification, channel)
	if w.metrics != nil {
		w.metrics.ObserveSendDuration(channelType, w.now().Sub(start))
	}

	if sendErr != nil {
		reason := "permanent_error"
		if transport.IsTransient(sendErr) {
			reason = "transient_error"
		}
		return w.recordFailure(ctx, attempt, channel.Type, sendErr.Error(), reason)
	}

	if _, err := w.attempts.UpdateStatus(ctx, attempt.ID, domain.AttemptStatusSent, nil); err != nil {
		return fmt.Errorf("failed to mark attempt sent: %w", err)
	}
	if w.metrics != nil {
		w.metrics.IncDeliverySent(channelType)
	}

	fields := []zap.Field{
		zap.String("attemptId", attempt.ID),
		zap.String("notificationId", notification.ID),
		zap.String("channelType", channelType),
	}
	if receipt != nil && receipt.MessageID != "" {
		fields = append(fields, zap.String("messageId", receipt.MessageID))
	}
	w.logger.Info("delivery sent", fields...)

	return nil
}

func (w *DeliveryWorker) recordFailure(ctx context.Context, attempt *domain.DeliveryAttempt, channelType domain.ChannelType, message string, reason string) error {
	updated, err := w.attempts.UpdateStatus(ctx, attempt.ID, domain.AttemptStatusFailed, &message)
	if err != nil {
		if domainNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to mark attempt failed: %w", err)
	}

	if w.metrics != nil {
		w.metrics.IncDeliveryFailed(channelType.String(), reason)
		if updated.Exhausted() {
			w.metrics.IncRetryExhausted(channelType.String())
		}
	}

	w.logger.Warn("delivery failed",
		zap.String("attemptId", attempt.ID),
		zap.String("notificationId", attempt.NotificationID),
		zap.String("channelType", channelType.String()),
		zap.String("reason", reason),
		zap.String("error", message),
	)

	return nil
}
