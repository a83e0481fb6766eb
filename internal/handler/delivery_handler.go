package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/notifyhq/notify-engine/internal/domain"
	"github.com/notifyhq/notify-engine/internal/service"
)

type DeliveryRouter interface {
	Deliver(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error)
}

type StatusAggregator interface {
	Summarize(ctx context.Context, notificationID string) (*service.DeliverySummary, error)
}

type RetryScheduler interface {
	RetryOne(ctx context.Context, attemptID string) (*domain.DeliveryAttempt, error)
	SweepPendingRetries(ctx context.Context) ([]domain.DeliveryAttempt, error)
}

type DeliveryHandler struct {
	router     DeliveryRouter
	aggregator StatusAggregator
	scheduler  RetryScheduler
}

func NewDeliveryHandler(router DeliveryRouter, aggregator StatusAggregator, scheduler RetryScheduler) (*DeliveryHandler, error) {
	if router == nil {
		return nil, fmt.Errorf("delivery router is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("status aggregator is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("retry scheduler is required")
	}
	return &DeliveryHandler{router: router, aggregator: aggregator, scheduler: scheduler}, nil
}

func RegisterDeliveryRoutes(router fiber.Router, deliveryRouter DeliveryRouter, aggregator StatusAggregator, scheduler RetryScheduler) error {
	h, err := NewDeliveryHandler(deliveryRouter, aggregator, scheduler)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications/:id/deliver", h.Deliver)
	v1.Get("/notifications/:id/delivery-status", h.DeliveryStatus)
	v1.Post("/attempts/:id/retry", h.RetryAttempt)
	v1.Post("/attempts/sweep", h.Sweep)

	return nil
}

type attemptResponse struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId"`
	ChannelID      string     `json:"channelId"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"maxAttempts"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type deliverySummaryResponse struct {
	NotificationID string                   `json:"notificationId"`
	TotalChannels  int                      `json:"totalChannels"`
	Delivered      int                      `json:"delivered"`
	Failed         int                      `json:"failed"`
	Pending        int                      `json:"pending"`
	Deliveries     []deliveryDetailResponse `json:"deliveries"`
}

type deliveryDetailResponse struct {
	AttemptID     string     `json:"attemptId"`
	ChannelID     string     `json:"channelId"`
	ChannelName   string     `json:"channelName,omitempty"`
	ChannelType   string     `json:"channelType,omitempty"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attemptCount"`
	MaxAttempts   int        `json:"maxAttempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	NextRetryAt   *time.Time `json:"nextRetryAt,omitempty"`
	ErrorMessage  *string    `json:"errorMessage,omitempty"`
}

func (h *DeliveryHandler) Deliver(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	created, err := h.router.Deliver(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"notificationId":    id,
		"deliveriesCreated": len(created),
	})
}

func (h *DeliveryHandler) DeliveryStatus(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	summary, err := h.aggregator.Summarize(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	details := make([]deliveryDetailResponse, 0, len(summary.Deliveries))
	for _, detail := range summary.Deliveries {
		item := deliveryDetailResponse{
			AttemptID:     detail.AttemptID,
			ChannelID:     detail.ChannelID,
			ChannelName:   detail.ChannelName,
			Status:        detail.Status.String(),
			AttemptCount:  detail.AttemptCount,
			MaxAttempts:   detail.MaxAttempts,
			LastAttemptAt: detail.LastAttemptAt,
			NextRetryAt:   detail.NextRetryAt,
			ErrorMessage:  detail.ErrorMessage,
		}
		if detail.ChannelType != "" {
			item.ChannelType = detail.ChannelType.String()
		}
		details = append(details, item)
	}

	return c.Status(fiber.StatusOK).JSON(deliverySummaryResponse{
		NotificationID: summary.NotificationID,
		TotalChannels:  summary.TotalChannels,
		Delivered:      summary.Delivered,
		Failed:         summary.Failed,
		Pending:        summary.Pending,
		Deliveries:     details,
	})
}

func (h *DeliveryHandler) RetryAttempt(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempt, err := h.scheduler.RetryOne(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toAttemptResponse(attempt))
}

func (h *DeliveryHandler) Sweep(c *fiber.Ctx) error {
	retried, err := h.scheduler.SweepPendingRetries(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(retried))
	for i := range retried {
		responses = append(responses, toAttemptResponse(&retried[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"retried":  len(responses),
		"attempts": responses,
	})
}

func toAttemptResponse(a *domain.DeliveryAttempt) attemptResponse {
	if a == nil {
		return attemptResponse{}
	}

	return attemptResponse{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		ChannelID:      a.ChannelID,
		Status:         a.Status.String(),
		AttemptCount:   a.AttemptCount,
		MaxAttempts:    a.MaxAttempts,
		LastAttemptAt:  a.LastAttemptAt,
		NextRetryAt:    a.NextRetryAt,
		ErrorMessage:   a.ErrorMessage,
		CreatedAt:      a.CreatedAt,
	}
}
