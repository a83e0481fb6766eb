package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"go.uber.org/zap"
)

func failedAttempt(id string, count int) *domain.DeliveryAttempt {
	return &domain.DeliveryAttempt{
		ID:             id,
		NotificationID: "n-1",
		ChannelID:      "ch-1",
		Status:         domain.AttemptStatusFailed,
		AttemptCount:   count,
		MaxAttempts:    3,
	}
}

func TestNewRetrySchedulerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRetryScheduler(nil, RetrySchedulerConfig{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error when attempt repository is nil")
	}
}

func TestRetryOneSchedulesBackoff(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		count     int
		wantDelay time.Duration
	}{
		{name: "first retry", count: 0, wantDelay: time.Second},
		{name: "second retry", count: 1, wantDelay: 2 * time.Second},
		{name: "third retry", count: 2, wantDelay: 4 * time.Second},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotExpected int
			var gotLast, gotNext time.Time
			attempts := &fakeAttemptRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
					return failedAttempt(id, tc.count), nil
				},
				incrementAttemptFn: func(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
					gotExpected = expectedCount
					gotLast = lastAttemptAt
					gotNext = nextRetryAt

					updated := failedAttempt(id, expectedCount+1)
					updated.Status = domain.AttemptStatusRetried
					updated.LastAttemptAt = &lastAttemptAt
					updated.NextRetryAt = &nextRetryAt
					return updated, nil
				},
			}

			scheduler, err := NewRetryScheduler(attempts, RetrySchedulerConfig{BaseDelay: time.Second}, zap.NewNop())
			if err != nil {
				t.Fatalf("NewRetryScheduler() error = %v", err)
			}
			scheduler.now = func() time.Time { return fixed }

			updated, err := scheduler.RetryOne(context.Background(), "a-1")
			if err != nil {
				t.Fatalf("RetryOne() error = %v", err)
			}

			if gotExpected != tc.count {
				t.Fatalf("expectedCount = %d, want %d", gotExpected, tc.count)
			}
			if !gotLast.Equal(fixed) {
				t.Fatalf("lastAttemptAt = %v, want %v", gotLast, fixed)
			}
			if want := fixed.Add(tc.wantDelay); !gotNext.Equal(want) {
				t.Fatalf("nextRetryAt = %v, want %v", gotNext, want)
			}
			if updated.Status != domain.AttemptStatusRetried {
				t.Fatalf("status = %s, want RETRIED", updated.Status)
			}
			if updated.AttemptCount != tc.count+1 {
				t.Fatalf("attemptCount = %d, want %d", updated.AttemptCount, tc.count+1)
			}
		})
	}
}

func TestRetryOneExhaustedLeavesAttemptUntouched(t *testing.T) {
	t.Parallel()

	incrementCalls := 0
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			return failedAttempt(id, 3), nil
		},
		incrementAttemptFn: func(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
			incrementCalls++
			return nil, nil
		},
	}

	scheduler, err := NewRetryScheduler(attempts, RetrySchedulerConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	_, err = scheduler.RetryOne(context.Background(), "a-1")
	if !errors.Is(err, domain.ErrExhausted) {
		t.Fatalf("RetryOne() error = %v, want ErrExhausted", err)
	}
	if incrementCalls != 0 {
		t.Fatalf("increment calls = %d, want 0", incrementCalls)
	}
}

func TestRetryOneRejectsDeliveredAttempt(t *testing.T) {
	t.Parallel()

	incrementCalls := 0
	attempts := &fakeAttemptRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			sent := failedAttempt(id, 1)
			sent.Status = domain.AttemptStatusSent
			return sent, nil
		},
		incrementAttemptFn: func(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
			incrementCalls++
			return nil, nil
		},
	}

	scheduler, err := NewRetryScheduler(attempts, RetrySchedulerConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	_, err = scheduler.RetryOne(context.Background(), "a-1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("RetryOne() error = %v, want ErrConflict", err)
	}
	if incrementCalls != 0 {
		t.Fatalf("increment calls = %d, want 0", incrementCalls)
	}
}

func TestRetryOneUnknownAttempt(t *testing.T) {
	t.Parallel()

	scheduler, err := NewRetryScheduler(&fakeAttemptRepo{}, RetrySchedulerConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	_, err = scheduler.RetryOne(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RetryOne() error = %v, want ErrNotFound", err)
	}
}

func TestSweepPendingRetriesSkipsRaces(t *testing.T) {
	t.Parallel()

	attempts := &fakeAttemptRepo{
		listEligibleForRetryFn: func(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
			return []domain.DeliveryAttempt{
				*failedAttempt("a-1", 1),
				*failedAttempt("a-2", 0),
				*failedAttempt("a-3", 2),
			}, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
			switch id {
			case "a-1":
				return failedAttempt(id, 1), nil
			case "a-2":
				// Hit the cap between selection and increment.
				return failedAttempt(id, 3), nil
			case "a-3":
				return failedAttempt(id, 2), nil
			default:
				return nil, domain.ErrNotFound
			}
		},
		incrementAttemptFn: func(ctx context.Context, id string, expectedCount int, lastAttemptAt, nextRetryAt time.Time) (*domain.DeliveryAttempt, error) {
			if id == "a-3" {
				// Lost a concurrent increment race.
				return nil, domain.ErrConflict
			}
			updated := failedAttempt(id, expectedCount+1)
			updated.Status = domain.AttemptStatusRetried
			return updated, nil
		},
	}

	scheduler, err := NewRetryScheduler(attempts, RetrySchedulerConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	retried, err := scheduler.SweepPendingRetries(context.Background())
	if err != nil {
		t.Fatalf("SweepPendingRetries() error = %v", err)
	}
	if len(retried) != 1 {
		t.Fatalf("retried count = %d, want 1", len(retried))
	}
	if retried[0].ID != "a-1" {
		t.Fatalf("retried id = %s, want a-1", retried[0].ID)
	}
}

func TestSweepPendingRetriesPropagatesListError(t *testing.T) {
	t.Parallel()

	attempts := &fakeAttemptRepo{
		listEligibleForRetryFn: func(ctx context.Context, limit int) ([]domain.DeliveryAttempt, error) {
			return nil, errors.New("query failed")
		},
	}

	scheduler, err := NewRetryScheduler(attempts, RetrySchedulerConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	if _, err := scheduler.SweepPendingRetries(context.Background()); err == nil {
		t.Fatal("expected list error to propagate")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	t.Parallel()

	scheduler, err := NewRetryScheduler(&fakeAttemptRepo{}, RetrySchedulerConfig{BaseDelay: time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScheduler() error = %v", err)
	}

	if got := scheduler.backoffDelay(1); got != time.Second {
		t.Fatalf("backoffDelay(1) = %v, want 1s", got)
	}
	if got := scheduler.backoffDelay(4); got != 8*time.Second {
		t.Fatalf("backoffDelay(4) = %v, want 8s", got)
	}
	if got := scheduler.backoffDelay(20); got != maxRetryDelay {
		t.Fatalf("backoffDelay(20) = %v, want %v", got, maxRetryDelay)
	}
}
