package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/observability"
)

// NotificationService logs notifications emitted by the other services.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     observability.OrNop(logger),
	}
}

// RegisterHandlers subscribes to every message type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.MessageUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.MessageMemberAdded, n.handleMembership)
	n.dispatcher.Subscribe(events.MessageMemberRemoved, n.handleMembership)
	n.dispatcher.Subscribe(events.MessageEventCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.MessageEventDeleted, n.handleEvent)
}

func (n *NotificationService) handleUserRegistered(_ context.Context, msg events.Message) error {
	n.logger.Info("UserRegistered", zap.String("message_id", msg.ID), zap.String("user_id", msg.UserID))
	return nil
}

func (n *NotificationService) handleMembership(_ context.Context, msg events.Message) error {
	n.logger.Info("MembershipChanged",
		zap.String("message_id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.String("event_id", msg.EventID),
		zap.String("user_id", msg.UserID),
		zap.Any("payload", msg.Payload))
	return nil
}

func (n *NotificationService) handleEvent(_ context.Context, msg events.Message) error {
	n.logger.Info("EventChanged",
		zap.String("message_id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.String("event_id", msg.EventID))
	return nil
}

// publish hands msg to dispatcher after the originating write has committed.
// Delivery failures are logged and never fail the caller.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, msg events.Message) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, msg); err != nil {
		logger.Warn("publish notification", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
