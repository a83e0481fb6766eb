package repository

import (
	"context"
	"errors"

	"github.com/notifyhq/notify-engine/internal/domain"
	"gorm.io/gorm"
)

// PriorityCount is one row of the per-role priority breakdown.
type PriorityCount struct {
	Priority domain.Priority `gorm:"column:priority"`
	Count    int             `gorm:"column:count"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRole(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
	BulkMarkRead(ctx context.Context, ids []string) (int64, error)
	CountByPriority(ctx context.Context, role string) ([]PriorityCount, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) ListByRole(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error) {
	query := r.db.WithContext(ctx).Where("role = ?", role)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var models []NotificationModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}

func (r *GormNotificationRepo) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *GormNotificationRepo) BulkMarkRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id IN ?", ids).
		Update("is_read", true)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (r *GormNotificationRepo) CountByPriority(ctx context.Context, role string) ([]PriorityCount, error) {
	var counts []PriorityCount
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("priority, COUNT(*) as count").
		Where("role = ?", role).
		Group("priority").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
