package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-service/internal/api/dto"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/service"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// EventsHandler exposes event listing, administration and subscriptions.
type EventsHandler struct {
	events        *service.EventService
	subscriptions *service.SubscriptionService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(events *service.EventService, subscriptions *service.SubscriptionService) *EventsHandler {
	return &EventsHandler{events: events, subscriptions: subscriptions}
}

// List handles GET /api/events.
func (h *EventsHandler) List(c *fiber.Ctx) error {
	events, err := h.subscriptions.ListUpcoming(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewEventListResponse(events)})
}

// ListMine handles GET /api/events/my.
func (h *EventsHandler) ListMine(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	events, err := h.subscriptions.ListUpcomingForUser(c.UserContext(), caller.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewEventListResponse(events)})
}

// Get handles GET /api/events/:id.
func (h *EventsHandler) Get(c *fiber.Ctx) error {
	event, err := h.events.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponse(event)})
}

// Create handles POST /api/events.
func (h *EventsHandler) Create(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	var req dto.EventCreateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	event, err := h.events.Create(c.UserContext(), caller, service.EventCreateInput{
		Title:       req.Title,
		Description: req.Description,
		MeetingTime: req.MeetingTime,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEventResponse(event)})
}

// Delete handles DELETE /api/events/:id.
func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	if err := h.events.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Subscription handles POST /api/events/:id/subscription with an explicit action.
func (h *EventsHandler) Subscription(c *fiber.Ctx) error {
	var req dto.SubscriptionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	action, err := domain.ParseSubscriptionAction(req.Action)
	if err != nil {
		return apperrors.MapError(err)
	}
	return h.apply(c, action)
}

// Subscribe handles POST /api/events/:id/subscribe.
func (h *EventsHandler) Subscribe(c *fiber.Ctx) error {
	return h.apply(c, domain.ActionAdd)
}

// Unsubscribe handles DELETE /api/events/:id/subscribe.
func (h *EventsHandler) Unsubscribe(c *fiber.Ctx) error {
	return h.apply(c, domain.ActionRemove)
}

func (h *EventsHandler) apply(c *fiber.Ctx, action domain.SubscriptionAction) error {
	caller, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthenticated()
	}
	event, err := h.subscriptions.Apply(c.UserContext(), c.Params("id"), caller.ID, action)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponse(event)})
}
