package repository

import (
	"context"
	"errors"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error)
	// ListEligibleForRetry returns failed attempts below their retry cap.
	ListEligibleForRetry(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
	// ListDueForRedelivery returns retried attempts whose backoff expired.
	ListDueForRedelivery(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error)
	UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error)
	// ClearNextRetry drops the due marker so the attempt is no longer
	// selected for redelivery. Status is left untouched.
	ClearNextRetry(ctx context.Context, id string) error
	// IncrementAttempt is a compare-and-set on the attempt counter: the
	// update applies only when the stored count still equals expectedCount,
	// is below max_attempts, and the attempt was not already delivered.
	// At most one concurrent caller wins.
	IncrementAttempt(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	var model DeliveryAttemptModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return attemptModelToDomain(&model), nil
}

func (r *GormAttemptRepo) ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

func (r *GormAttemptRepo) ListEligibleForRetry(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND attempt_count < max_attempts", domain.AttemptStatusFailed).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []DeliveryAttemptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

func (r *GormAttemptRepo) ListDueForRedelivery(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", domain.AttemptStatusRetried, now).
		Order("next_retry_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []DeliveryAttemptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	return attemptModelsToDomain(models), nil
}

func (r *GormAttemptRepo) UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
	if !status.IsValid() {
		return nil, domain.ErrValidation
	}

	updates := map[string]any{"status": status}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *GormAttemptRepo) ClearNextRetry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ?", id).
		Update("next_retry_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormAttemptRepo) IncrementAttempt(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ? AND attempt_count = ? AND attempt_count < max_attempts AND status <> ?",
			id, expectedCount, domain.AttemptStatusSent).
		Updates(map[string]any{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"status":          domain.AttemptStatusRetried,
			"last_attempt_at": lastAttemptAt,
			"next_retry_at":   nextRetryAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race, got delivered or exhausted in between, or the row
		// is gone. Re-read so the caller can tell which.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.AttemptStatusSent {
			return nil, domain.ErrConflict
		}
		if current.Exhausted() {
			return nil, domain.ErrExhausted
		}
		return nil, domain.ErrConflict
	}

	return r.GetByID(ctx, id)
}

func attemptModelsToDomain(models []DeliveryAttemptModel) []domain.DeliveryAttempt {
	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts
}
