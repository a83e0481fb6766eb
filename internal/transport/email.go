package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/wneessen/go-mail"
)

const defaultSMTPPort = 587

// EmailTransport delivers notifications over SMTP using go-mail. Host,
// port, credentials and recipient all come from the channel config.
type EmailTransport struct {
	// newClient is swappable so tests can avoid real SMTP dials.
	newClient func(host string, opts ...mail.Option) (*mail.Client, error)
}

func NewEmailTransport() *EmailTransport {
	return &EmailTransport{newClient: mail.NewClient}
}

func (t *EmailTransport) Send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*Receipt, error) {
	if t == nil || t.newClient == nil {
		return nil, fmt.Errorf("email transport is not initialized")
	}

	settings, err := smtpSettings(channel.Config)
	if err != nil {
		return nil, &TransportError{
			Message:   err.Error(),
			Transient: false,
		}
	}

	m := mail.NewMsg()
	if err := m.From(settings.from); err != nil {
		return nil, &TransportError{
			Message:   fmt.Sprintf("invalid from address %q", settings.from),
			Transient: false,
			Cause:     err,
		}
	}
	if err := m.To(settings.recipient); err != nil {
		return nil, &TransportError{
			Message:   fmt.Sprintf("invalid recipient %q", settings.recipient),
			Transient: false,
			Cause:     err,
		}
	}

	m.Subject(notification.Title)
	m.SetBodyString(mail.TypeTextPlain, notification.Message)

	opts := []mail.Option{
		mail.WithPort(settings.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if settings.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.username),
			mail.WithPassword(settings.password),
		)
	}

	client, err := t.newClient(settings.host, opts...)
	if err != nil {
		return nil, &TransportError{
			Message:   "failed to create smtp client",
			Transient: false,
			Cause:     err,
		}
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		// SMTP connectivity problems are worth retrying; address or
		// authentication rejections come back through the same path,
		// so the retry cap bounds the damage.
		return nil, &TransportError{
			Message:   "smtp send failed",
			Transient: true,
			Cause:     err,
		}
	}

	return &Receipt{Detail: fmt.Sprintf("delivered to %s", settings.recipient)}, nil
}

type smtpConfig struct {
	host      string
	port      int
	from      string
	recipient string
	username  string
	password  string
}

func smtpSettings(config domain.ChannelConfig) (smtpConfig, error) {
	settings := smtpConfig{
		host:      configString(config, "smtp_host"),
		port:      configInt(config, "smtp_port", defaultSMTPPort),
		from:      configString(config, "from"),
		recipient: configString(config, "recipient"),
		username:  configString(config, "username"),
		password:  configString(config, "password"),
	}

	if settings.host == "" {
		return smtpConfig{}, fmt.Errorf("channel config is missing smtp_host")
	}
	if settings.recipient == "" {
		return smtpConfig{}, fmt.Errorf("channel config is missing recipient")
	}
	if settings.from == "" {
		settings.from = settings.username
	}
	if settings.from == "" {
		return smtpConfig{}, fmt.Errorf("channel config is missing from address")
	}

	return settings, nil
}

func configString(config domain.ChannelConfig, key string) string {
	value, _ := config[key].(string)
	return strings.TrimSpace(value)
}

func configInt(config domain.ChannelConfig, key string, fallback int) int {
	switch value := config[key].(type) {
	case int:
		if value > 0 {
			return value
		}
	case float64:
		// JSON numbers decode as float64.
		if value > 0 {
			return int(value)
		}
	}
	return fallback
}
