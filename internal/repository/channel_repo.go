package repository

import (
	"context"
	"errors"

	"github.com/notifyhq/notify-engine/internal/domain"
	"gorm.io/gorm"
)

type ChannelRepository interface {
	Create(ctx context.Context, c *domain.DeliveryChannel) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryChannel, error)
	List(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error)
	Deactivate(ctx context.Context, id string) (*domain.DeliveryChannel, error)
}

type GormChannelRepo struct {
	db *gorm.DB
}

func NewGormChannelRepo(db *gorm.DB) *GormChannelRepo {
	return &GormChannelRepo{db: db}
}

func (r *GormChannelRepo) Create(ctx context.Context, c *domain.DeliveryChannel) error {
	model, err := channelModelFromDomain(c)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	created, err := channelModelToDomain(model)
	if err != nil {
		return err
	}
	if c != nil {
		*c = *created
	}
	return nil
}

func (r *GormChannelRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	var model DeliveryChannelModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return channelModelToDomain(&model)
}

func (r *GormChannelRepo) List(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryChannelModel{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var models []DeliveryChannelModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	channels := make([]domain.DeliveryChannel, 0, len(models))
	for i := range models {
		channel, err := channelModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		channels = append(channels, *channel)
	}

	return channels, nil
}

func (r *GormChannelRepo) Deactivate(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryChannelModel{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}
