package service

import (
	"context"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/repository"
)

// ChannelRegistry exposes the channel set to the delivery engine. The
// active set is re-queried on every fan-out; no caching is promised.
type ChannelRegistry interface {
	ActiveChannels(ctx context.Context) ([]domain.DeliveryChannel, error)
	AllChannels(ctx context.Context) ([]domain.DeliveryChannel, error)
}

// StoreChannelRegistry is the store-backed registry implementation.
type StoreChannelRegistry struct {
	channels repository.ChannelRepository
}

func NewStoreChannelRegistry(channels repository.ChannelRepository) *StoreChannelRegistry {
	return &StoreChannelRegistry{channels: channels}
}

func (r *StoreChannelRegistry) ActiveChannels(ctx context.Context) ([]domain.DeliveryChannel, error) {
	return r.channels.List(ctx, true)
}

func (r *StoreChannelRegistry) AllChannels(ctx context.Context) ([]domain.DeliveryChannel, error) {
	return r.channels.List(ctx, false)
}
