package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/repository"
)

// DeliverySummary is the read-only delivery view for one notification.
type DeliverySummary struct {
	NotificationID string
	TotalChannels  int
	Delivered      int
	Failed         int
	Pending        int
	Deliveries     []DeliveryDetail
}

// DeliveryDetail is one attempt row with the channel denormalized for
// display via an explicit lookup.
type DeliveryDetail struct {
	AttemptID     string
	ChannelID     string
	ChannelName   string
	ChannelType   domain.ChannelType
	Status        domain.AttemptStatus
	AttemptCount  int
	MaxAttempts   int
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	ErrorMessage  *string
}

// StatusAggregator summarizes all delivery attempts for a notification.
// Pure read; safe to call concurrently with any other operation.
type StatusAggregator struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	registry      ChannelRegistry
}

func NewStatusAggregator(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	registry ChannelRegistry,
) (*StatusAggregator, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("channel registry is required")
	}

	return &StatusAggregator{
		notifications: notifications,
		attempts:      attempts,
		registry:      registry,
	}, nil
}

func (a *StatusAggregator) Summarize(ctx context.Context, notificationID string) (*DeliverySummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(notificationID) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	notification, err := a.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	attempts, err := a.attempts.ListByNotification(ctx, notification.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}

	channelsByID, err := a.channelIndex(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DeliverySummary{
		NotificationID: notification.ID,
		TotalChannels:  len(attempts),
		Deliveries:     make([]DeliveryDetail, 0, len(attempts)),
	}

	for i := range attempts {
		attempt := attempts[i]

		switch attempt.Status {
		case domain.AttemptStatusSent:
			summary.Delivered++
		case domain.AttemptStatusFailed:
			summary.Failed++
		case domain.AttemptStatusPending, domain.AttemptStatusRetried:
			summary.Pending++
		}

		detail := DeliveryDetail{
			AttemptID:     attempt.ID,
			ChannelID:     attempt.ChannelID,
			Status:        attempt.Status,
			AttemptCount:  attempt.AttemptCount,
			MaxAttempts:   attempt.MaxAttempts,
			LastAttemptAt: attempt.LastAttemptAt,
			NextRetryAt:   attempt.NextRetryAt,
			ErrorMessage:  attempt.ErrorMessage,
		}
		if channel, ok := channelsByID[attempt.ChannelID]; ok {
			detail.ChannelName = channel.Name
			detail.ChannelType = channel.Type
		}

		summary.Deliveries = append(summary.Deliveries, detail)
	}

	return summary, nil
}

func (a *StatusAggregator) channelIndex(ctx context.Context) (map[string]domain.DeliveryChannel, error) {
	channels, err := a.registry.AllChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	index := make(map[string]domain.DeliveryChannel, len(channels))
	for _, channel := range channels {
		index[channel.ID] = channel
	}
	return index, nil
}
