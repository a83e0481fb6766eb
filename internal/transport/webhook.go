package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/notifyhq/notify-engine/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Role     string `json:"role"`
}

// WebhookTransport POSTs notification payloads to the URL in the channel
// config. Retries are owned by the delivery engine, never by the client.
type WebhookTransport struct {
	client *resty.Client
}

func NewWebhookTransport() *WebhookTransport {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return &WebhookTransport{client: client}
}

func NewWebhookTransportWithClient(client *resty.Client) (*WebhookTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookTransport{client: client}, nil
}

func (t *WebhookTransport) Send(ctx context.Context, notification domain.Notification, channel domain.DeliveryChannel) (*Receipt, error) {
	if t == nil || t.client == nil {
		return nil, fmt.Errorf("webhook transport is not initialized")
	}

	endpoint, err := webhookURL(channel.Config)
	if err != nil {
		return nil, &TransportError{
			Message:   err.Error(),
			Transient: false,
		}
	}

	payload := webhookPayload{
		Title:    notification.Title,
		Message:  notification.Message,
		Priority: strings.ToLower(notification.Priority.String()),
		Role:     notification.Role,
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return nil, &TransportError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &TransportError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Receipt{
			StatusCode: statusCode,
			Detail:     responseBody,
			MessageID:  webhookMessageID(response),
		}, nil
	}

	return nil, &TransportError{
		StatusCode: statusCode,
		Message:    webhookErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func webhookURL(config domain.ChannelConfig) (string, error) {
	raw, ok := config["url"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("channel config is missing webhook url")
	}

	trimmed := strings.TrimSpace(raw)
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}

	return trimmed, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func webhookErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func webhookMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
