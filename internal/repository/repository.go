package repository

import (
	"context"
	"time"

	"github.com/spec-kit/event-service/internal/domain"
)

// Store is the capability set shared by entity repositories.
type Store[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	Insert(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error
}

// UserRepository defines persistence access for users.
// Lookups of missing users return domain.ErrUserNotFound.
type UserRepository interface {
	Store[domain.User]
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
}

// EventRepository defines persistence access for events and memberships.
// Lookups of missing events return domain.ErrEventNotFound.
type EventRepository interface {
	Store[domain.Event]
	FindUpcoming(ctx context.Context, now time.Time) ([]domain.Event, error)
	FindUpcomingForUser(ctx context.Context, userID string, now time.Time) ([]domain.Event, error)
	FindByIDWithMembers(ctx context.Context, id string) (*domain.Event, error)
	DeleteMembershipsForUser(ctx context.Context, userID string) error
	// InMembershipTx runs fn in a single isolated transaction. Writes made
	// through tx are committed only when fn returns nil.
	InMembershipTx(ctx context.Context, fn func(tx MembershipTx) error) error
}

// MembershipTx is the view of the event store available inside a membership transaction.
type MembershipTx interface {
	// LockEvent acquires the event for the rest of the transaction.
	LockEvent(ctx context.Context, eventID string) error
	IsMember(ctx context.Context, eventID, userID string) (bool, error)
	AddMember(ctx context.Context, eventID, userID string) error
	RemoveMember(ctx context.Context, eventID, userID string) error
	LoadEvent(ctx context.Context, eventID string) (*domain.Event, error)
}
