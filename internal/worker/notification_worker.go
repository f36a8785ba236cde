package worker

import (
	"github.com/spec-kit/event-service/internal/events"
	"github.com/spec-kit/event-service/internal/service"
)

// StartNotificationWorker registers notification handlers and, when a
// publisher is configured, forwards every message to the broker.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, publisher *events.AMQPPublisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if publisher != nil && dispatcher != nil {
		publisher.Register(dispatcher)
	}
}
