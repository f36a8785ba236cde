package dto

import (
	"time"

	"github.com/spec-kit/event-service/internal/domain"
)

// EventCreateRequest payload for POST /api/events.
type EventCreateRequest struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description"`
	MeetingTime time.Time `json:"meeting_time" validate:"required"`
}

// SubscriptionRequest payload for POST /api/events/:id/subscription.
type SubscriptionRequest struct {
	Action string `json:"action" validate:"required"`
}

// MemberResponse is a member as listed on an event.
type MemberResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// EventResponse is the public view of an event.
type EventResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	MeetingTime time.Time        `json:"meeting_time"`
	Members     []MemberResponse `json:"members"`
}

// NewEventResponse converts a domain event.
func NewEventResponse(event *domain.Event) EventResponse {
	members := make([]MemberResponse, 0, len(event.Members))
	for _, m := range event.Members {
		members = append(members, MemberResponse{UserID: m.UserID, Username: m.Username})
	}
	return EventResponse{
		ID:          event.ID,
		Title:       event.Title,
		Description: event.Description,
		MeetingTime: event.MeetingTime.UTC(),
		Members:     members,
	}
}

// NewEventListResponse converts domain events.
func NewEventListResponse(events []domain.Event) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, NewEventResponse(&events[i]))
	}
	return resp
}
