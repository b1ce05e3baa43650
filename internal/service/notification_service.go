package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/delivery"
	"github.com/spec-kit/maintenance-desk/internal/domain"
	"github.com/spec-kit/maintenance-desk/internal/events"
	"github.com/spec-kit/maintenance-desk/internal/observability"
)

// DeliveryAttempt records the outcome of sending one notification.
type DeliveryAttempt struct {
	ID           string       `json:"id"`
	Notification Notification `json:"notification"`
	Delivered    bool         `json:"delivered"`
	Error        string       `json:"error,omitempty"`
}

// NotificationService turns lifecycle events into delivered chat messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	directory  *DirectoryService
	sender     delivery.Sender
	metrics    *observability.Metrics
	logger     *zap.Logger
	timeout    time.Duration
}

// NotificationDependencies bundles collaborators of the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Directory  *DirectoryService
	Sender     delivery.Sender
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Timeout bounds each individual send.
	Timeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sender := deps.Sender
	if sender == nil {
		sender = delivery.NewLogSender(logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		directory:  deps.Directory,
		sender:     sender,
		metrics:    deps.Metrics,
		logger:     logger,
		timeout:    timeout,
	}
}

// RegisterHandlers subscribes to every event and delivers synchronously on
// the publisher's goroutine.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleEvent)
	n.RegisterAssignmentHandler()
}

// RegisterAssignmentHandler subscribes only to specialist assignments. It is
// used when ticket events are delivered by a worker pool instead.
func (n *NotificationService) RegisterAssignmentHandler() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSpecialistAssigned, n.handleSpecialistAssigned)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	_, err := n.Notify(ctx, event)
	return err
}

func (n *NotificationService) handleSpecialistAssigned(_ context.Context, event events.Event) error {
	n.logger.Info("specialist assigned",
		zap.String("event_id", event.ID),
		zap.Int64("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

// Notify runs the fan-out for event and tries every resulting notification
// once. A failed send is recorded in its attempt and does not stop the
// others. The returned error only covers failures to build the fan-out
// context.
func (n *NotificationService) Notify(ctx context.Context, event events.Event) ([]DeliveryAttempt, error) {
	fc, err := n.fanoutContext(ctx, event)
	if err != nil {
		return nil, err
	}
	notifications := NotificationsFor(event, fc)
	if len(notifications) == 0 {
		n.logger.Debug("no recipients for event",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID))
		return []DeliveryAttempt{}, nil
	}

	attempts := make([]DeliveryAttempt, 0, len(notifications))
	for _, notification := range notifications {
		attempts = append(attempts, n.deliver(ctx, event, notification))
	}
	return attempts, nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, notification Notification) DeliveryAttempt {
	attempt := DeliveryAttempt{ID: uuid.NewString(), Notification: notification}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.sender.Send(sendCtx, delivery.Message{
		RecipientID: notification.RecipientID,
		Text:        notification.Text,
		PhotoID:     notification.PhotoID,
	})
	n.metrics.RecordDelivery(string(event.Type), err == nil)
	if err != nil {
		attempt.Error = err.Error()
		n.logger.Warn("notification delivery failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Int64("recipient_id", notification.RecipientID),
			zap.Error(err))
		return attempt
	}
	attempt.Delivered = true
	return attempt
}

func (n *NotificationService) fanoutContext(ctx context.Context, event events.Event) (FanoutContext, error) {
	var fc FanoutContext
	if n.directory == nil {
		return fc, nil
	}
	switch event.Type {
	case events.EventTicketCreated:
		contacts, err := n.directory.SpecialistContacts(ctx, event.Ticket.Category)
		if err != nil {
			return fc, err
		}
		fc.Specialists = contacts
	case events.EventTicketStatusChanged:
		if change, ok := event.StatusChange(); ok && change.NewStatus == domain.TicketStatusCompleted {
			actor, err := n.directory.FindByID(ctx, event.ActorID)
			if err != nil {
				return fc, err
			}
			fc.Actor = actor
		}
	}
	return fc, nil
}
