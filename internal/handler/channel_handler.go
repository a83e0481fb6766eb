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

type ChannelService interface {
	Create(ctx context.Context, input service.CreateChannelInput) (*domain.DeliveryChannel, error)
	GetByID(ctx context.Context, id string) (*domain.DeliveryChannel, error)
	List(ctx context.Context, activeOnly bool) ([]domain.DeliveryChannel, error)
	Deactivate(ctx context.Context, id string) (*domain.DeliveryChannel, error)
}

type ChannelHandler struct {
	service ChannelService
}

func NewChannelHandler(service ChannelService) (*ChannelHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("channel service is required")
	}
	return &ChannelHandler{service: service}, nil
}

func RegisterChannelRoutes(router fiber.Router, service ChannelService) error {
	h, err := NewChannelHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/channels", h.CreateChannel)
	v1.Get("/channels", h.ListChannels)
	v1.Get("/channels/:id", h.GetChannel)
	v1.Post("/channels/:id/deactivate", h.DeactivateChannel)

	return nil
}

type createChannelRequest struct {
	Name   string               `json:"name"`
	Type   string               `json:"type"`
	Config domain.ChannelConfig `json:"config"`
}

type channelResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Type      string               `json:"type"`
	Config    domain.ChannelConfig `json:"config,omitempty"`
	Active    bool                 `json:"active"`
	CreatedAt time.Time            `json:"createdAt"`
}

type listChannelsResponse struct {
	Data []channelResponse `json:"data"`
}

func (h *ChannelHandler) CreateChannel(c *fiber.Ctx) error {
	var req createChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.Context(), service.CreateChannelInput{
		Name:   req.Name,
		Type:   req.Type,
		Config: req.Config,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toChannelResponse(created))
}

func (h *ChannelHandler) GetChannel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	channel, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toChannelResponse(channel))
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)

	channels, err := h.service.List(c.Context(), activeOnly)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]channelResponse, 0, len(channels))
	for i := range channels {
		responses = append(responses, toChannelResponse(&channels[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listChannelsResponse{Data: responses})
}

func (h *ChannelHandler) DeactivateChannel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	channel, err := h.service.Deactivate(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toChannelResponse(channel))
}

func toChannelResponse(ch *domain.DeliveryChannel) channelResponse {
	if ch == nil {
		return channelResponse{}
	}

	return channelResponse{
		ID:        ch.ID,
		Name:      ch.Name,
		Type:      ch.Type.String(),
		Config:    ch.Config,
		Active:    ch.Active,
		CreatedAt: ch.CreatedAt,
	}
}
