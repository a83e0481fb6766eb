package domain

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents the message priority level.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Field length limits for notification content (in characters).
const (
	MaxTitleLength   = 255
	MaxMessageLength = 10000
	MaxRoleLength    = 100
)

// Notification is the event record that gets delivered to channels.
// Content is immutable after creation; only the read flag changes.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Priority  Priority
	Role      string
	IsRead    bool
	CreatedAt time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if strings.TrimSpace(n.Role) == "" {
		return fmt.Errorf("%w: role is required", ErrValidation)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}

	if len([]rune(n.Title)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	if len([]rune(n.Message)) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	if len([]rune(n.Role)) > MaxRoleLength {
		return fmt.Errorf("%w: role exceeds %d characters", ErrValidation, MaxRoleLength)
	}

	return nil
}
