package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
	"github.com/spec-kit/event-service/internal/repository"
)

// SubscriptionService applies explicit membership changes and lists
// upcoming events.
type SubscriptionService struct {
	events     repository.EventRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SubscriptionDependencies bundles requirements for the subscription service.
type SubscriptionDependencies struct {
	EventRepo  repository.EventRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewSubscriptionService builds the service.
func NewSubscriptionService(deps SubscriptionDependencies) *SubscriptionService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SubscriptionService{
		events:     deps.EventRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     observability.OrNop(deps.Logger),
		now:        clock,
	}
}

// Subscribe adds userID to the event's members.
func (s *SubscriptionService) Subscribe(ctx context.Context, eventID, userID string) (*domain.Event, error) {
	return s.Apply(ctx, eventID, userID, domain.ActionAdd)
}

// Unsubscribe removes userID from the event's members.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, eventID, userID string) (*domain.Event, error) {
	return s.Apply(ctx, eventID, userID, domain.ActionRemove)
}

// Apply performs action for the (event, user) pair in one transaction: the
// event lookup, the membership check and the write either all commit or none
// do. It returns the event with its members as of the commit.
func (s *SubscriptionService) Apply(ctx context.Context, eventID, userID string, action domain.SubscriptionAction) (*domain.Event, error) {
	if action != domain.ActionAdd && action != domain.ActionRemove {
		return nil, domain.ErrInvalidAction
	}

	var updated *domain.Event
	err := s.events.InMembershipTx(ctx, func(tx repository.MembershipTx) error {
		if err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}
		member, err := tx.IsMember(ctx, eventID, userID)
		if err != nil {
			return err
		}

		switch action {
		case domain.ActionAdd:
			if member {
				return domain.ErrAlreadySubscribed
			}
			if err := tx.AddMember(ctx, eventID, userID); err != nil {
				return err
			}
		case domain.ActionRemove:
			if !member {
				return domain.ErrNotSubscribed
			}
			if err := tx.RemoveMember(ctx, eventID, userID); err != nil {
				return err
			}
		}

		updated, err = tx.LoadEvent(ctx, eventID)
		return err
	})
	s.metrics.RecordMembership(string(action), membershipResult(err))
	if err != nil {
		return nil, err
	}

	msgType := events.MessageMemberAdded
	if action == domain.ActionRemove {
		msgType = events.MessageMemberRemoved
	}
	s.logger.Info("membership changed",
		zap.String("action", string(action)),
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
	)
	publish(ctx, s.dispatcher, s.logger, events.Message{
		Type:    msgType,
		EventID: eventID,
		UserID:  userID,
		Payload: events.MembershipPayload{
			EventTitle:  updated.Title,
			MeetingTime: updated.MeetingTime,
			MemberCount: len(updated.Members),
		},
	})
	return updated, nil
}

// ListUpcoming returns every event whose meeting time is after now.
func (s *SubscriptionService) ListUpcoming(ctx context.Context) ([]domain.Event, error) {
	return s.events.FindUpcoming(ctx, s.now().UTC())
}

// ListUpcomingForUser returns the upcoming events userID is a member of.
func (s *SubscriptionService) ListUpcomingForUser(ctx context.Context, userID string) ([]domain.Event, error) {
	return s.events.FindUpcomingForUser(ctx, userID, s.now().UTC())
}

func membershipResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, domain.ErrAlreadySubscribed):
		return "already_subscribed"
	case errors.Is(err, domain.ErrNotSubscribed):
		return "not_subscribed"
	default:
		return "error"
	}
}
