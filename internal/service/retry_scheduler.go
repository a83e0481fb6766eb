package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultBaseRetryDelay = time.Second
	maxRetryDelay         = 60 * time.Second
	defaultSweepLimit     = 100
)

// RetrySchedulerConfig tunes retry behavior per deployment.
type RetrySchedulerConfig struct {
	// BaseDelay is the backoff unit: the n-th retry waits BaseDelay*2^(n-1).
	BaseDelay time.Duration
	// SweepLimit bounds how many eligible attempts one sweep pass processes.
	SweepLimit int
}

// RetryScheduler advances failed delivery attempts through exponential
// backoff, enforcing the per-attempt cap. It never performs the send
// itself; it marks the record as due and the worker does the rest.
type RetryScheduler struct {
	attempts   repository.AttemptRepository
	logger     *zap.Logger
	baseDelay  time.Duration
	sweepLimit int
	now        func() time.Time
}

func NewRetryScheduler(
	attempts repository.AttemptRepository,
	cfg RetrySchedulerConfig,
	logger *zap.Logger,
) (*RetryScheduler, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseRetryDelay
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScheduler{
		attempts:   attempts,
		logger:     logger,
		baseDelay:  cfg.BaseDelay,
		sweepLimit: cfg.SweepLimit,
		now:        time.Now,
	}, nil
}

// RetryOne schedules the next retry for a single attempt: increments the
// counter, stamps lastAttemptAt, computes the backoff window, and moves
// the attempt to RETRIED. Delivered attempts are rejected with
// domain.ErrConflict; exhausted attempts are left completely untouched
// and reported as domain.ErrExhausted.
func (s *RetryScheduler) RetryOne(ctx context.Context, attemptID string) (*domain.DeliveryAttempt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(attemptID) == "" {
		return nil, fmt.Errorf("%w: attempt id is required", domain.ErrValidation)
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	// SENT is terminal; a delivered attempt never re-enters the retry loop.
	if attempt.Status == domain.AttemptStatusSent {
		return nil, fmt.Errorf("%w: attempt already delivered", domain.ErrConflict)
	}
	if attempt.Exhausted() {
		return nil, domain.ErrExhausted
	}

	newCount := attempt.AttemptCount + 1
	lastAttemptAt := s.now().UTC()
	nextRetryAt := lastAttemptAt.Add(s.backoffDelay(newCount))

	// The store-level compare-and-set on the counter guarantees at most
	// one winner when RetryOne races with itself or with a sweep.
	updated, err := s.attempts.IncrementAttempt(ctx, attemptID, attempt.AttemptCount, lastAttemptAt, nextRetryAt)
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// SweepPendingRetries retries every failed attempt still below its cap.
// Attempts that become exhausted (or win a concurrent retry) between
// selection and increment are skipped, not treated as sweep failures.
// Selection filters on FAILED, so attempts just moved to RETRIED are not
// picked up again by an immediately following sweep.
func (s *RetryScheduler) SweepPendingRetries(ctx context.Context) ([]domain.DeliveryAttempt, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	eligible, err := s.attempts.ListEligibleForRetry(ctx, s.sweepLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts eligible for retry: %w", err)
	}

	retried := make([]domain.DeliveryAttempt, 0, len(eligible))
	for i := range eligible {
		attempt, err := s.RetryOne(ctx, eligible[i].ID)
		if err != nil {
			if errors.Is(err, domain.ErrExhausted) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				s.logger.Debug("sweep skipped attempt",
					zap.String("attemptId", eligible[i].ID),
					zap.Error(err),
				)
				continue
			}
			return retried, err
		}
		retried = append(retried, *attempt)
	}

	return retried, nil
}

// backoffDelay returns baseDelay * 2^(attemptNumber-1), capped.
func (s *RetryScheduler) backoffDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := s.baseDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
