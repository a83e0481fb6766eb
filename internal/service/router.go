package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/observability"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// DeliveryRouter fans one notification out to every active channel,
// creating one pending delivery attempt per channel.
type DeliveryRouter struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	registry      ChannelRegistry
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	maxAttempts   int
	now           func() time.Time
}

func NewDeliveryRouter(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	registry ChannelRegistry,
	publisher queue.Publisher,
	maxAttempts int,
	logger *zap.Logger,
) (*DeliveryRouter, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	if maxAttempts < 1 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryRouter{
		notifications: notifications,
		attempts:      attempts,
		registry:      registry,
		publisher:     publisher,
		logger:        logger,
		maxAttempts:   maxAttempts,
		now:           time.Now,
	}, nil
}

func (r *DeliveryRouter) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Deliver creates one pending attempt per channel active at call time.
// Channels toggled after the snapshot do not affect this wave, and every
// call produces a fresh, independent wave: there is no dedup key.
func (r *DeliveryRouter) Deliver(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(notificationID) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	notification, err := r.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	channels, err := r.registry.ActiveChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot active channels: %w", err)
	}

	created := make([]domain.DeliveryAttempt, 0, len(channels))
	for _, channel := range channels {
		attempt := domain.DeliveryAttempt{
			ID:             uuid.NewString(),
			NotificationID: notification.ID,
			ChannelID:      channel.ID,
			Status:         domain.AttemptStatusPending,
			AttemptCount:   0,
			MaxAttempts:    r.maxAttempts,
			CreatedAt:      r.now().UTC(),
		}

		if err := r.attempts.Create(ctx, &attempt); err != nil {
			// Attempts persisted so far stay behind for a later sweep;
			// there is no compensating rollback.
			return created, fmt.Errorf("failed to create delivery attempt: %w", err)
		}
		created = append(created, attempt)

		if r.metrics != nil {
			r.metrics.IncAttemptCreated(channel.Type.String())
		}

		r.publishAttempt(ctx, notification, channel, attempt)
	}

	return created, nil
}

// publishAttempt hands the attempt to the worker queue. A publish failure
// is non-fatal: the attempt is already persisted as pending and a later
// sweep picks it up.
func (r *DeliveryRouter) publishAttempt(ctx context.Context, notification *domain.Notification, channel domain.DeliveryChannel, attempt domain.DeliveryAttempt) {
	if r.publisher == nil {
		return
	}

	msg := queue.AttemptMessage{
		AttemptID:      attempt.ID,
		NotificationID: notification.ID,
		ChannelID:      channel.ID,
		ChannelType:    channel.Type,
		Priority:       notification.Priority,
	}

	if err := r.publisher.Publish(ctx, queue.QueueName(channel.Type), msg); err != nil {
		r.logger.Error("failed to publish delivery attempt",
			zap.String("attemptId", attempt.ID),
			zap.String("notificationId", notification.ID),
			zap.String("channelType", channel.Type.String()),
			zap.Error(err),
		)
	}
}
