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

// CreateChannelInput carries the caller-supplied channel fields.
type CreateChannelInput struct {
	Name   string
	Type   string
	Config domain.ChannelConfig
}

type ChannelService struct {
	channels repository.ChannelRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewChannelService(channels repository.ChannelRepository, logger *zap.Logger) (*ChannelService, error) {
	if channels == nil {
		return nil, fmt.Errorf("channel repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChannelService{
		channels: channels,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Create registers a new channel. New channels start active and join the
// fan-out set of the next delivery wave.
func (s *ChannelService) Create(ctx context.Context, input CreateChannelInput) (*domain.DeliveryChannel, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	channelType, err := domain.ParseChannelTypeFromString(input.Type)
	if err != nil {
		return nil, err
	}

	channel := domain.DeliveryChannel{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		Type:      channelType,
		Config:    input.Config,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := channel.Validate(); err != nil {
		return nil, err
	}

	if err := s.channels.Create(ctx, &channel); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	s.logger.Info("channel created",
		zap.String("channelId", channel.ID),
		zap.String("name", channel.Name),
		zap.String("type", channel.Type.String()),
	)

	return &channel, nil
}

func (s *ChannelService) GetByID(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: channel id is required", domain.ErrValidation)
	}

	return s.channels.GetByID(ctx, id)
}

func (s *ChannelService) List(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.channels.List(ctx, activeOnly)
}

// Deactivate removes a channel from future fan-outs. Attempts already
// created against it are unaffected.
func (s *ChannelService) Deactivate(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: channel id is required", domain.ErrValidation)
	}

	channel, err := s.channels.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("channel deactivated", zap.String("channelId", channel.ID))
	return channel, nil
}
