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

type NotificationService interface {
	Create(ctx context.Context, input service.CreateNotificationInput) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRole(ctx context.Context, role string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
	BulkMarkRead(ctx context.Context, ids []string) (int64, error)
	Stats(ctx context.Context, role string) (*service.NotificationStats, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/stats", h.GetStats)
	v1.Post("/notifications/read", h.BulkMarkRead)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Patch("/notifications/:id/read", h.MarkRead)

	return nil
}

type createNotificationRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Role     string `json:"role"`
}

type bulkMarkReadRequest struct {
	IDs []string `json:"ids"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Role      string    `json:"role"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
}

type notificationStatsResponse struct {
	Role   string `json:"role"`
	Total  int    `json:"total"`
	High   int    `json:"high"`
	Normal int    `json:"normal"`
	Low    int    `json:"low"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.Context(), service.CreateNotificationInput{
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
		Role:     req.Role,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	role := strings.TrimSpace(c.Query("role"))
	unreadOnly := c.QueryBool("unread", false)

	notifications, err := h.service.ListByRole(c.Context(), role, unreadOnly)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.MarkRead(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) BulkMarkRead(c *fiber.Ctx) error {
	var req bulkMarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.BulkMarkRead(c.Context(), req.IDs)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"updated": updated,
	})
}

func (h *NotificationHandler) GetStats(c *fiber.Ctx) error {
	role := strings.TrimSpace(c.Query("role"))
	stats, err := h.service.Stats(c.Context(), role)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(notificationStatsResponse{
		Role:   stats.Role,
		Total:  stats.Total,
		High:   stats.High,
		Normal: stats.Normal,
		Low:    stats.Low,
	})
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, toNotificationResponse(&notifications[i]))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority.String(),
		Role:      n.Role,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
