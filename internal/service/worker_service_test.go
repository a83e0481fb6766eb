package service

import (
	"context"
	"errors"
	"testing"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/queue"
	"github.com/notifyhq/notify-engine/internal/transport"
	"go.uber.org/zap"
)

func workerUnderTest(t *testing.T, notifications *fakeNotificationRepo, channels *fakeChannelRepo, attempts *fakeAttemptRepo, tr *fakeTransport, limiter *fakeRateLimiter) *DeliveryWorker {
	t.Helper()

	worker, err := NewDeliveryWorker(
		notifications,
		channels,
		attempts,
		&fakeConsumer{},
		tr,
		limiter,
		1,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewDeliveryWorker() error = %v", err)
	}
	return worker
}

func workerMessage() queue.AttemptMessage {
	return queue.AttemptMessage{
		AttemptID:      "a-1",
		NotificationID: "n-1",
		ChannelID:      "ch-1",
		ChannelType:    domain.ChannelTypeWebhook,
		Priority:       domain.PriorityNormal,
	}
}

func pendingAttempt() *domain.DeliveryAttempt {
	return &domain.DeliveryAttempt{
		ID:             "a-1",
		NotificationID: "n-1",
		ChannelID:      "ch-1",
		Status:         domain.AttemptStatusPending,
		AttemptCount:   0,
		MaxAttempts:    3,
	}
}

func activeWebhookChannel() *domain.DeliveryChannel {
	return &domain.DeliveryChannel{
		ID:     "ch-1",
		Name:   "ops hook",
		Type:   domain.ChannelTypeWebhook,
		Config: domain.ChannelConfig{"url": "https://example.com/hook"},
		Active: true,
	}
}

func TestProcessMessageMarksSentOnSuccess(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return deliverableNotification(), nil
		},
	}
	channels := &fakeChannelRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
			return activeWebhookChannel(), nil
		},
	}

	var gotStatus domain.AttemptStatus
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			return pendingAttempt(), nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
			gotStatus = status
			if errorMessage != nil {
				t.Fatalf("errorMessage = %q, want nil", *errorMessage)
			}
			updated := pendingAttempt()
			updated.Status = status
			return updated, nil
		},
	}

	waited := ""
	limiter := &fakeRateLimiter{
		waitFn: func(ctx context.Context, channelType string) error {
			waited = channelType
			return nil
		},
	}

	worker := workerUnderTest(t, notifications, channels, attempts, &fakeTransport{}, limiter)

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if gotStatus != domain.AttemptStatusSent {
		t.Fatalf("status = %s, want SENT", gotStatus)
	}
	if waited != "webhook" {
		t.Fatalf("rate limiter key = %s, want webhook", waited)
	}
}

func TestProcessMessageDeliversRepublishedRetriedAttempt(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return deliverableNotification(), nil
		},
	}
	channels := &fakeChannelRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
			return activeWebhookChannel(), nil
		},
	}

	var gotStatus domain.AttemptStatus
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			retried := pendingAttempt()
			retried.Status = domain.AttemptStatusRetried
			retried.AttemptCount = 1
			return retried, nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
			gotStatus = status
			updated := pendingAttempt()
			updated.Status = status
			return updated, nil
		},
	}

	worker := workerUnderTest(t, notifications, channels, attempts, &fakeTransport{}, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if gotStatus != domain.AttemptStatusSent {
		t.Fatalf("status = %s, want SENT", gotStatus)
	}
}

func TestProcessMessageMarksFailedOnTransportError(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return deliverableNotification(), nil
		},
	}
	channels := &fakeChannelRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
			return activeWebhookChannel(), nil
		},
	}

	var gotStatus domain.AttemptStatus
	var gotMessage string
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			return pendingAttempt(), nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
			gotStatus = status
			if errorMessage != nil {
				gotMessage = *errorMessage
			}
			updated := pendingAttempt()
			updated.Status = status
			return updated, nil
		},
	}

	tr := &fakeTransport{
		sendFn: func(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*transport.Receipt, error) {
			return nil, &transport.TransportError{StatusCode: 503, Message: "upstream unavailable", Transient: true}
		},
	}

	worker := workerUnderTest(t, notifications, channels, attempts, tr, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if gotStatus != domain.AttemptStatusFailed {
		t.Fatalf("status = %s, want FAILED", gotStatus)
	}
	if gotMessage == "" {
		t.Fatal("expected error message recorded on attempt")
	}
}

func TestProcessMessageSkipsTerminalAttempt(t *testing.T) {
	t.Parallel()

	sendCalls := 0
	tr := &fakeTransport{
		sendFn: func(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*transport.Receipt, error) {
			sendCalls++
			return &transport.Receipt{StatusCode: 200}, nil
		},
	}

	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			sent := pendingAttempt()
			sent.Status = domain.AttemptStatusSent
			return sent, nil
		},
	}

	worker := workerUnderTest(t, &fakeNotificationRepo{}, &fakeChannelRepo{}, attempts, tr, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if sendCalls != 0 {
		t.Fatalf("send calls = %d, want 0", sendCalls)
	}
}

func TestProcessMessageDropsMissingAttempt(t *testing.T) {
	t.Parallel()

	worker := workerUnderTest(t, &fakeNotificationRepo{}, &fakeChannelRepo{}, &fakeAttemptRepo{}, &fakeTransport{}, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v, want nil for missing attempt", err)
	}
}

func TestProcessMessageFailsInactiveChannel(t *testing.T) {
	t.Parallel()

	notifications := &fakeNotificationRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			return deliverableNotification(), nil
		},
	}
	channels := &fakeChannelRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryChannel, error) {
			inactive := activeWebhookChannel()
			inactive.Active = false
			return inactive, nil
		},
	}

	var gotStatus domain.AttemptStatus
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			return pendingAttempt(), nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.AttemptStatus, errorMessage *string) (*domain.DeliveryAttempt, error) {
			gotStatus = status
			updated := pendingAttempt()
			updated.Status = status
			return updated, nil
		},
	}

	sendCalls := 0
	tr := &fakeTransport{
		sendFn: func(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*transport.Receipt, error) {
			sendCalls++
			return nil, nil
		},
	}

	worker := workerUnderTest(t, notifications, channels, attempts, tr, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if gotStatus != domain.AttemptStatusFailed {
		t.Fatalf("status = %s, want FAILED", gotStatus)
	}
	if sendCalls != 0 {
		t.Fatalf("send calls = %d, want 0", sendCalls)
	}
}

func TestProcessMessageReturnsInfraErrorForRedelivery(t *testing.T) {
	t.Parallel()

	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			return nil, errors.New("db unavailable")
		},
	}

	worker := workerUnderTest(t, &fakeNotificationRepo{}, &fakeChannelRepo{}, attempts, &fakeTransport{}, &fakeRateLimiter{})

	if err := worker.ProcessMessage(context.Background(), workerMessage()); err == nil {
		t.Fatal("expected infra error to be returned for redelivery")
	}
}
