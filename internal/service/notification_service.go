package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// CreateNotificationInput carries the caller-supplied notification fields.
type CreateNotificationInput struct {
	Title    string
	Message  string
	Priority string
	Role     string
}

// NotificationStats is the per-role priority breakdown. Every priority is
// present, zero-filled when the role has no rows for it.
type NotificationStats struct {
	Role   string
	Total  int
	High   int
	Normal int
	Low    int
}

type NotificationService struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(notifications repository.NotificationRepository, logger *zap.Logger) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	priority, err := domain.ParsePriorityFromString(input.Priority)
	if err != nil {
		return nil, err
	}

	notification := domain.Notification{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Priority:  priority,
		Role:      strings.TrimSpace(input.Role),
		IsRead:    false,
		CreatedAt: s.now().UTC(),
	}
	if err := notification.Validate(); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, &notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.logger.Info("notification created",
		zap.String("notificationId", notification.ID),
		zap.String("role", notification.Role),
		zap.String("priority", notification.Priority.String()),
	)

	return &notification, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	return s.notifications.GetByID(ctx, id)
}

func (s *NotificationService) ListByRole(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	role = strings.TrimSpace(role)
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", domain.ErrValidation)
	}

	return s.notifications.ListByRole(ctx, role, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	return s.notifications.MarkRead(ctx, id)
}

func (s *NotificationService) BulkMarkRead(ctx context.Context, ids []string) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return 0, fmt.Errorf("%w: at least one notification id is required", domain.ErrValidation)
	}

	return s.notifications.BulkMarkRead(ctx, cleaned)
}

func (s *NotificationService) Stats(ctx context.Context, role string) (*NotificationStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	role = strings.TrimSpace(role)
	if role == "" {
		return nil, fmt.Errorf("%w: role is required", domain.ErrValidation)
	}

	counts, err := s.notifications.CountByPriority(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	stats := &NotificationStats{Role: role}
	for _, row := range counts {
		stats.Total += row.Count
		switch row.Priority {
		case domain.PriorityHigh:
			stats.High = row.Count
		case domain.PriorityNormal:
			stats.Normal = row.Count
		case domain.PriorityLow:
			stats.Low = row.Count
		}
	}

	return stats, nil
}
