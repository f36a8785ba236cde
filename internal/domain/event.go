package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxEventTitleLength bounds Event.Title in characters.
const MaxEventTitleLength = 100

// Event is a scheduled meeting users can subscribe to.
type Event struct {
	ID          string
	Title       string
	Description string
	MeetingTime time.Time
	Members     []Member
}

// Member is the user side of a membership as exposed on an event.
type Member struct {
	UserID   string
	Username string
}

// HasMember reports whether the user appears in the loaded member list.
func (e *Event) HasMember(userID string) bool {
	for _, m := range e.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsUpcoming reports whether the meeting is strictly after now.
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.MeetingTime.UTC().After(now.UTC())
}

// SubscriptionAction is the explicit intent of a membership change.
type SubscriptionAction string

const (
	ActionAdd    SubscriptionAction = "add"
	ActionRemove SubscriptionAction = "remove"
)

// ParseSubscriptionAction validates a caller supplied action.
func ParseSubscriptionAction(raw string) (SubscriptionAction, error) {
	switch SubscriptionAction(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionAdd:
		return ActionAdd, nil
	case ActionRemove:
		return ActionRemove, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}
