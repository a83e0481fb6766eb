package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelType represents the outbound delivery mechanism.
type ChannelType string

const (
	ChannelTypeEmail   ChannelType = "EMAIL"
	ChannelTypeWebhook ChannelType = "WEBHOOK"
)

func (t ChannelType) String() string { return string(t) }

func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeEmail, ChannelTypeWebhook:
		return true
	}
	return false
}

func ParseChannelTypeFromString(s string) (ChannelType, error) {
	ct := ChannelType(strings.ToUpper(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", fmt.Errorf("%w: invalid channel type %q", ErrValidation, s)
	}
	return ct, nil
}

// ChannelTypes lists every supported channel type.
func ChannelTypes() []ChannelType {
	return []ChannelType{ChannelTypeEmail, ChannelTypeWebhook}
}

// ChannelConfig is an opaque key-value blob interpreted only by the
// transport that serves the channel type (SMTP settings, webhook URL).
type ChannelConfig map[string]any

// DeliveryChannel is a configured outbound destination. Only active
// channels take part in fan-out.
type DeliveryChannel struct {
	ID        string
	Name      string
	Type      ChannelType
	Config    ChannelConfig
	Active    bool
	CreatedAt time.Time
}

func (c *DeliveryChannel) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: channel name is required", ErrValidation)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: invalid channel type %q", ErrValidation, c.Type)
	}
	return nil
}
