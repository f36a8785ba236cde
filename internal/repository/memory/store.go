// Package memory provides in-process implementations of the repository
// contracts. They back the service tests and run the API without Postgres.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/repository"
)

type membershipKey struct {
	eventID string
	userID  string
}

// Store holds users, events, and memberships behind a single lock so that
// cross-entity operations (cascading deletes, member joins) stay consistent.
type Store struct {
	mu          sync.Mutex
	users       map[string]domain.User
	events      map[string]domain.Event
	memberships map[membershipKey]time.Time
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		events:      make(map[string]domain.Event),
		memberships: make(map[membershipKey]time.Time),
		now:         time.Now,
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository {
	return &userRepository{store: s}
}

// Events returns the event repository view of the store.
func (s *Store) Events() repository.EventRepository {
	return &eventRepository{store: s}
}

// MembershipCount returns the number of membership rows for an event.
func (s *Store) MembershipCount(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key := range s.memberships {
		if key.eventID == eventID {
			count++
		}
	}
	return count
}

// eventWithMembersLocked copies the event and attaches its members, using
// isMember to decide membership. Callers hold s.mu.
func (s *Store) eventWithMembersLocked(event domain.Event, isMember func(userID string) bool) domain.Event {
	members := []domain.Member{}
	for userID, user := range s.users {
		if isMember(userID) {
			members = append(members, domain.Member{UserID: userID, Username: user.Username})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	event.Members = members
	return event
}

func (s *Store) committedMember(eventID string) func(string) bool {
	return func(userID string) bool {
		_, ok := s.memberships[membershipKey{eventID: eventID, userID: userID}]
		return ok
	}
}

func sortEvents(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].MeetingTime.Equal(events[j].MeetingTime) {
			return events[i].ID < events[j].ID
		}
		return events[i].MeetingTime.Before(events[j].MeetingTime)
	})
}
