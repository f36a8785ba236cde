package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/repository"
)

type eventRepository struct {
	store *Store
}

func (r *eventRepository) Insert(_ context.Context, event *domain.Event) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = uuid.NewString()
	event.MeetingTime = event.MeetingTime.UTC()
	stored := *event
	stored.Members = nil
	s.events[event.ID] = stored
	return nil
}

func (r *eventRepository) Update(_ context.Context, event *domain.Event) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; !ok {
		return domain.ErrEventNotFound
	}
	stored := *event
	stored.MeetingTime = stored.MeetingTime.UTC()
	stored.Members = nil
	s.events[event.ID] = stored
	return nil
}

func (r *eventRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return domain.ErrEventNotFound
	}
	delete(s.events, id)
	for key := range s.memberships {
		if key.eventID == id {
			delete(s.memberships, key)
		}
	}
	return nil
}

func (r *eventRepository) FindByID(_ context.Context, id string) (*domain.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &event, nil
}

func (r *eventRepository) FindByIDWithMembers(_ context.Context, id string) (*domain.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	loaded := s.eventWithMembersLocked(event, s.committedMember(id))
	return &loaded, nil
}

func (r *eventRepository) FindUpcoming(_ context.Context, now time.Time) ([]domain.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.Event{}
	for id, event := range s.events {
		if !event.IsUpcoming(now) {
			continue
		}
		result = append(result, s.eventWithMembersLocked(event, s.committedMember(id)))
	}
	sortEvents(result)
	return result, nil
}

func (r *eventRepository) FindUpcomingForUser(_ context.Context, userID string, now time.Time) ([]domain.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []domain.Event{}
	for id, event := range s.events {
		if !event.IsUpcoming(now) {
			continue
		}
		if _, ok := s.memberships[membershipKey{eventID: id, userID: userID}]; !ok {
			continue
		}
		result = append(result, s.eventWithMembersLocked(event, s.committedMember(id)))
	}
	sortEvents(result)
	return result, nil
}

func (r *eventRepository) DeleteMembershipsForUser(_ context.Context, userID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.memberships {
		if key.userID == userID {
			delete(s.memberships, key)
		}
	}
	return nil
}

// InMembershipTx holds the store lock for the whole of fn, so transactions
// are serialized. fn must not call back into the repositories.
func (r *eventRepository) InMembershipTx(ctx context.Context, fn func(tx repository.MembershipTx) error) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &membershipTx{store: s, staged: make(map[membershipKey]bool)}
	if err := fn(tx); err != nil {
		return err
	}

	now := s.now().UTC()
	for key, present := range tx.staged {
		if present {
			s.memberships[key] = now
		} else {
			delete(s.memberships, key)
		}
	}
	return nil
}

// membershipTx overlays staged writes on the committed memberships.
type membershipTx struct {
	store  *Store
	staged map[membershipKey]bool
}

func (t *membershipTx) LockEvent(_ context.Context, eventID string) error {
	if _, ok := t.store.events[eventID]; !ok {
		return domain.ErrEventNotFound
	}
	return nil
}

func (t *membershipTx) IsMember(_ context.Context, eventID, userID string) (bool, error) {
	return t.member(eventID)(userID), nil
}

func (t *membershipTx) AddMember(_ context.Context, eventID, userID string) error {
	if _, ok := t.store.events[eventID]; !ok {
		return domain.ErrEventNotFound
	}
	if _, ok := t.store.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	if t.member(eventID)(userID) {
		return domain.ErrAlreadySubscribed
	}
	t.staged[membershipKey{eventID: eventID, userID: userID}] = true
	return nil
}

func (t *membershipTx) RemoveMember(_ context.Context, eventID, userID string) error {
	if !t.member(eventID)(userID) {
		return domain.ErrNotSubscribed
	}
	t.staged[membershipKey{eventID: eventID, userID: userID}] = false
	return nil
}

func (t *membershipTx) LoadEvent(_ context.Context, eventID string) (*domain.Event, error) {
	event, ok := t.store.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	loaded := t.store.eventWithMembersLocked(event, t.member(eventID))
	return &loaded, nil
}

func (t *membershipTx) member(eventID string) func(string) bool {
	committed := t.store.committedMember(eventID)
	return func(userID string) bool {
		if present, ok := t.staged[membershipKey{eventID: eventID, userID: userID}]; ok {
			return present
		}
		return committed(userID)
	}
}
