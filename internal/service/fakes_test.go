package service

import (
	"context"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/repository"
	"github.com/notifyhq/notify-engine/internal/transport"
)

type fakeNotificationRepo struct {
	createFn          func(ctx context.Context, n *domain.Notification) error
	getByIDFn         func(ctx context.Context, id string) (*domain.Notification, error)
	listByRoleFn      func(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error)
	markReadFn        func(ctx context.Context, id string) (*domain.Notification, error)
	bulkMarkReadFn    func(ctx context.Context, ids []string) (int64, error)
	countByPriorityFn func(ctx context.Context, role string) ([]repository.PriorityCount, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) ListByRole(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error) {
	if f.listByRoleFn != nil {
		return f.listByRoleFn(ctx, role, unreadOnly)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) BulkMarkRead(ctx context.Context, ids []string) (int64, error) {
	if f.bulkMarkReadFn != nil {
		return f.bulkMarkReadFn(ctx, ids)
	}
	return 0, nil
}

func (f *fakeNotificationRepo) CountByPriority(ctx context.Context, role string) ([]repository.PriorityCount, error) {
	if f.countByPriorityFn != nil {
		return f.countByPriorityFn(ctx, role)
	}
	return nil, nil
}

type fakeChannelRepo struct {
	createFn     func(ctx context.Context, c *domain.DeliveryChannel) error
	getByIDFn    func(ctx context.Context, id string) (*domain.DeliveryChannel, error)
	listFn       func(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error)
	deactivateFn func(ctx context.Context, id string) (*domain.DeliveryChannel, error)
}

func (f *fakeChannelRepo) Create(ctx context.Context, c *domain.DeliveryChannel) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeChannelRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeChannelRepo) List(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error) {
	if f.listFn != nil {
		return f.listFn(ctx, activeOnly)
	}
	return nil, nil
}

func (f *fakeChannelRepo) Deactivate(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeAttemptRepo struct {
	createFn               func(ctx context.Context, a *domain.DeliveryAttempt) error
	getByIDFn              func(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	listByNotificationFn   func(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error)
	listEligibleForRetryFn func(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error)
	listDueForRedeliveryFn func(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error)
	updateStatusFn         func(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error)
	clearNextRetryFn       func(ctx context.Context, id string) error
	incrementAttemptFn     func(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error)
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAttemptRepo) ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	if f.listByNotificationFn != nil {
		return f.listByNotificationFn(ctx, notificationID)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) ListEligibleForRetry(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
	if f.listEligibleForRetryFn != nil {
		return f.listEligibleForRetryFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) ListDueForRedelivery(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error) {
	if f.listDueForRedeliveryFn != nil {
		return f.listDueForRedeliveryFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeAttemptRepo) UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status, errorMessage)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAttemptRepo) ClearNextRetry(ctx context.Context, id string) error {
	if f.clearNextRetryFn != nil {
		return f.clearNextRetryFn(ctx, id)
	}
	return nil
}

func (f *fakeAttemptRepo) IncrementAttempt(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
	if f.incrementAttemptFn != nil {
		return f.incrementAttemptFn(ctx, id, expectedCount, lastAttemptAt, nextRetryAt)
	}
	return nil, domain.ErrNotFound
}

type fakeRegistry struct {
	activeChannelsFn func(ctx context.Context) ([]domain.DeliveryChannel, error)
	allChannelsFn    func(ctx context.Context) ([]domain.DeliveryChannel, error)
}

func (f *fakeRegistry) ActiveChannels(ctx context.Context) ([]domain.DeliveryChannel, error) {
	if f.activeChannelsFn != nil {
		return f.activeChannelsFn(ctx)
	}
	return nil, nil
}

func (f *fakeRegistry) AllChannels(ctx context.Context) ([]domain.DeliveryChannel, error) {
	if f.allChannelsFn != nil {
		return f.allChannelsFn(ctx)
	}
	return nil, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.AttemptMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.AttemptMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) Close() error { return nil }

type fakeTransport struct {
	sendFn func(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*transport.Receipt, error)
}

func (f *fakeTransport) Send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*transport.Receipt, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, notification, channel)
	}
	return &transport.Receipt{StatusCode: 200}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channelType string) (bool, error)
	waitFn  func(ctx context.Context, channelType string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channelType string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channelType)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channelType string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channelType)
	}
	return nil
}
