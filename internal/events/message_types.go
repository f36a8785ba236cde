package events

import "time"

// MessageType enumerates supported notification identifiers.
type MessageType string

const (
	MessageUserRegistered MessageType = "user_registered"
	MessageMemberAdded    MessageType = "member_added"
	MessageMemberRemoved  MessageType = "member_removed"
	MessageEventCreated   MessageType = "event_created"
	MessageEventDeleted   MessageType = "event_deleted"
)

// AllMessageTypes lists every type a sink may subscribe to.
var AllMessageTypes = []MessageType{
	MessageUserRegistered,
	MessageMemberAdded,
	MessageMemberRemoved,
	MessageEventCreated,
	MessageEventDeleted,
}

// Message represents a notification emitted by services after a commit.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	EventID   string      `json:"event_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// MembershipPayload describes a membership change.
type MembershipPayload struct {
	EventTitle  string    `json:"event_title"`
	MeetingTime time.Time `json:"meeting_time"`
	MemberCount int       `json:"member_count"`
}

// UserRegisteredPayload describes a new account.
type UserRegisteredPayload struct {
	Username string `json:"username"`
}

// EventPayload describes an administered event.
type EventPayload struct {
	Title       string    `json:"title"`
	MeetingTime time.Time `json:"meeting_time"`
}
