// Package transport implements the outbound delivery ports. A Transport
// interprets a channel's opaque config and performs the actual send; the
// delivery engine only consumes its success/failure outcome.
package transport

import (
	"context"
	"fmt"

	"github.com/notifyhq/notify-engine/internal/domain"
)

// Transport sends one notification through one configured channel.
type Transport interface {
	Send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*Receipt, error)
}

// Receipt stores transport call metadata for audit and logging.
type Receipt struct {
	StatusCode int
	Detail     string
	MessageID  string
}

// Mux routes sends to the transport registered for the channel type.
type Mux struct {
	transports map[domain.ChannelType]Transport
}

func NewMux() *Mux {
	return &Mux{transports: make(map[domain.ChannelType]Transport)}
}

func (m *Mux) Register(channelType domain.ChannelType, t Transport) *Mux {
	if m.transports == nil {
		m.transports = make(map[domain.ChannelType]Transport)
	}
	m.transports[channelType] = t
	return m
}

func (m *Mux) Send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*Receipt, error) {
	if m == nil || len(m.transports) == 0 {
		return nil, fmt.Errorf("no transports registered")
	}

	t, ok := m.transports[channel.Type]
	if !ok {
		return nil, &TransportError{
			Message:   fmt.Sprintf("no transport for channel type %q", channel.Type),
			Transient: false,
		}
	}

	return t.Send(ctx, notification, channel)
}
