package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/repository"
)

// Operator is the principal used by administrative tooling that acts outside
// an HTTP request.
var Operator = &domain.User{Username: "operator", IsAdmin: true}

// EventService manages the event catalogue.
type EventService struct {
	events     repository.EventRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// EventDependencies bundles requirements for the event service.
type EventDependencies struct {
	EventRepo  repository.EventRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// EventCreateInput describes event creation payload.
type EventCreateInput struct {
	Title       string
	Description string
	MeetingTime time.Time
}

// NewEventService builds the service.
func NewEventService(deps EventDependencies) *EventService {
	return &EventService{
		events:     deps.EventRepo,
		dispatcher: deps.Dispatcher,
		logger:     observability.OrNop(deps.Logger),
	}
}

// Create stores a new event. Only administrators may call it.
func (s *EventService) Create(ctx context.Context, caller *domain.User, input EventCreateInput) (*domain.Event, error) {
	if caller == nil || !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	title := strings.TrimSpace(input.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > domain.MaxEventTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", domain.ErrInvalidInput, domain.MaxEventTitleLength)
	}
	if input.MeetingTime.IsZero() {
		return nil, fmt.Errorf("%w: meeting time required", domain.ErrInvalidInput)
	}

	event := &domain.Event{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		MeetingTime: input.MeetingTime.UTC(),
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, err
	}
	event.Members = []domain.Member{}

	s.logger.Info("event created", zap.String("event_id", event.ID))
	publish(ctx, s.dispatcher, s.logger, events.Message{
		Type:    events.MessageEventCreated,
		EventID: event.ID,
		Payload: events.EventPayload{Title: event.Title, MeetingTime: event.MeetingTime},
	})
	return event, nil
}

// Get returns the event with its members.
func (s *EventService) Get(ctx context.Context, id string) (*domain.Event, error) {
	return s.events.FindByIDWithMembers(ctx, id)
}

// Delete removes an event and its memberships. Only administrators may call it.
func (s *EventService) Delete(ctx context.Context, caller *domain.User, id string) error {
	if caller == nil || !caller.IsAdmin {
		return domain.ErrForbidden
	}
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("event deleted", zap.String("event_id", id))
	publish(ctx, s.dispatcher, s.logger, events.Message{
		Type:    events.MessageEventDeleted,
		EventID: id,
		Payload: events.EventPayload{Title: event.Title, MeetingTime: event.MeetingTime},
	})
	return nil
}
