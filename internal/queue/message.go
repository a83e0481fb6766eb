package queue

import (
	"fmt"
	"strings"

	"github.com/notifyhq/notify-engine/internal/domain"
)

// AttemptMessage is the broker payload for processing one delivery attempt.
type AttemptMessage struct {
	AttemptID      string             `json:"attemptId"`
	NotificationID string             `json:"notificationId"`
	ChannelID      string             `json:"channelId"`
	ChannelType    domain.ChannelType `json:"channelType"`
	Priority       domain.Priority    `json:"priority"`
}

func (m AttemptMessage) Validate() error {
	if strings.TrimSpace(m.AttemptID) == "" {
		return fmt.Errorf("attemptId is required")
	}
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if strings.TrimSpace(m.ChannelID) == "" {
		return fmt.Errorf("channelId is required")
	}
	if !m.ChannelType.IsValid() {
		return fmt.Errorf("invalid channel type %q", m.ChannelType)
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}
