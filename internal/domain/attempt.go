package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptStatus represents the lifecycle state of a delivery attempt.
//
// PENDING is the initial state set at fan-out. SENT is terminal. FAILED is
// terminal once the attempt is exhausted, otherwise it is retryable.
// RETRIED means a retry was just scheduled; the transport outcome moves the
// attempt back to SENT or FAILED.
type AttemptStatus string

const (
	AttemptStatusPending AttemptStatus = "PENDING"
	AttemptStatusSent    AttemptStatus = "SENT"
	AttemptStatusFailed  AttemptStatus = "FAILED"
	AttemptStatusRetried AttemptStatus = "RETRIED"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptStatusPending, AttemptStatusSent, AttemptStatusFailed, AttemptStatusRetried:
		return true
	}
	return false
}

func ParseAttemptStatusFromString(s string) (AttemptStatus, error) {
	st := AttemptStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt status %q", ErrValidation, s)
	}
	return st, nil
}

// DefaultMaxAttempts caps retries per delivery attempt unless overridden.
const DefaultMaxAttempts = 3

// DeliveryAttempt tracks the state of sending one notification through one
// channel, across retries. Created at fan-out, mutated by the retry
// scheduler and by transport outcome reports, never deleted.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	ChannelID      string
	Status         AttemptStatus
	AttemptCount   int
	MaxAttempts    int
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Exhausted reports whether the attempt reached its retry cap and must
// never be retried again.
func (a *DeliveryAttempt) Exhausted() bool {
	return a.AttemptCount >= a.MaxAttempts
}

// Terminal reports whether no further state change is expected.
func (a *DeliveryAttempt) Terminal() bool {
	if a.Status == AttemptStatusSent {
		return true
	}
	return a.Status == AttemptStatusFailed && a.Exhausted()
}

func (a *DeliveryAttempt) Validate() error {
	if strings.TrimSpace(a.NotificationID) == "" {
		return fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	if strings.TrimSpace(a.ChannelID) == "" {
		return fmt.Errorf("%w: channel id is required", ErrValidation)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: invalid attempt status %q", ErrValidation, a.Status)
	}
	if a.AttemptCount < 0 {
		return fmt.Errorf("%w: attempt count must be >= 0", ErrValidation)
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1", ErrValidation)
	}
	if a.AttemptCount > a.MaxAttempts {
		return fmt.Errorf("%w: attempt count exceeds max attempts", ErrValidation)
	}
	return nil
}
