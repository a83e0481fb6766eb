package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/observability"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultDueBatchSize  = 100
)

// RetrySweeper is the periodic background pass over the attempt table.
// Each tick it re-enqueues retried attempts whose backoff window expired,
// then schedules a retry for every failed attempt still below its cap.
type RetrySweeper struct {
	attempts      repository.AttemptRepository
	notifications repository.NotificationRepository
	registry      ChannelRegistry
	scheduler     *RetryScheduler
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	dueBatchSize  int
	now           func() time.Time
}

func NewRetrySweeper(
	attempts repository.AttemptRepository,
	notifications repository.NotificationRepository,
	registry ChannelRegistry,
	scheduler *RetryScheduler,
	publisher queue.Publisher,
	interval time.Duration,
	logger *zap.Logger,
) (*RetrySweeper, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("retry scheduler is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetrySweeper{
		attempts:      attempts,
		notifications: notifications,
		registry:      registry,
		scheduler:     scheduler,
		publisher:     publisher,
		logger:        logger,
		interval:      interval,
		dueBatchSize:  defaultDueBatchSize,
		now:           time.Now,
	}, nil
}

func (s *RetrySweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start blocks running sweep passes until ctx is canceled. A pass runs
// immediately on start, then on every interval tick.
func (s *RetrySweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info("retry sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

// runPass never fails the loop; storage or queue trouble is logged and
// retried on the next tick.
func (s *RetrySweeper) runPass(ctx context.Context) {
	channelsByID, err := s.channelIndex(ctx)
	if err != nil {
		s.logger.Error("sweep pass aborted", zap.Error(err))
		return
	}

	s.enqueueDue(ctx, channelsByID)
	s.scheduleFailed(ctx, channelsByID)
}

// enqueueDue hands retried attempts whose backoff expired back to the
// workers. The due marker is cleared after publishing so the next tick
// does not re-enqueue the attempt; it stays RETRIED until the worker
// reports the transport outcome.
func (s *RetrySweeper) enqueueDue(ctx context.Context, channelsByID map[string]domain.DeliveryChannel) {
	due, err := s.attempts.ListDueForRedelivery(ctx, s.now().UTC(), s.dueBatchSize)
	if err != nil {
		s.logger.Error("failed to list due attempts", zap.Error(err))
		return
	}

	for i := range due {
		attempt := due[i]

		channel, ok := channelsByID[attempt.ChannelID]
		if !ok {
			s.logger.Warn("due attempt references unknown channel",
				zap.String("attemptId", attempt.ID),
				zap.String("channelId", attempt.ChannelID),
			)
			continue
		}

		priority := domain.PriorityNormal
		notification, err := s.notifications.GetByID(ctx, attempt.NotificationID)
		if err == nil {
			priority = notification.Priority
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("failed to load notification for due attempt",
				zap.String("attemptId", attempt.ID),
				zap.Error(err),
			)
			continue
		}

		if s.publisher != nil {
			msg := queue.AttemptMessage{
				AttemptID:      attempt.ID,
				NotificationID: attempt.NotificationID,
				ChannelID:      attempt.ChannelID,
				ChannelType:    channel.Type,
				Priority:       priority,
			}
			if err := s.publisher.Publish(ctx, queue.QueueName(channel.Type), msg); err != nil {
				s.logger.Error("failed to re-enqueue due attempt",
					zap.String("attemptId", attempt.ID),
					zap.Error(err),
				)
				continue
			}
		}

		if err := s.attempts.ClearNextRetry(ctx, attempt.ID); err != nil && !domainNotFound(err) {
			s.logger.Error("failed to clear due marker",
				zap.String("attemptId", attempt.ID),
				zap.Error(err),
			)
		}
	}

	if len(due) > 0 {
		s.logger.Info("re-enqueued due attempts", zap.Int("count", len(due)))
	}
}

// scheduleFailed runs the scheduler sweep and records metrics per channel.
func (s *RetrySweeper) scheduleFailed(ctx context.Context, channelsByID map[string]domain.DeliveryChannel) {
	retried, err := s.scheduler.SweepPendingRetries(ctx)
	if err != nil {
		s.logger.Error("retry sweep failed", zap.Error(err))
		return
	}
	if len(retried) == 0 {
		return
	}

	if s.metrics != nil {
		for i := range retried {
			channelType := "unknown"
			if channel, ok := channelsByID[retried[i].ChannelID]; ok {
				channelType = channel.Type.String()
			}
			s.metrics.IncRetryScheduled(channelType)
		}
	}

	s.logger.Info("scheduled retries", zap.Int("count", len(retried)))
}

func (s *RetrySweeper) channelIndex(ctx context.Context) (map[string]domain.DeliveryChannel, error) {
	channels, err := s.registry.AllChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	index := make(map[string]domain.DeliveryChannel, len(channels))
	for _, channel := range channels {
		index[channel.ID] = channel
	}
	return index, nil
}

func domainNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
