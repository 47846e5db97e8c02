package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/events"
	"github.com/fixzit/fm-service/internal/idempotency"
)

const notificationScope = "notification:"

// NotificationService handles emitting notifications for domain events.
// Queue delivery is at least once; with a guard, an event id is handled once.
type NotificationService struct {
	dispatcher events.Dispatcher
	guard      *idempotency.Guard
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. guard may be nil.
func NewNotificationService(dispatcher events.Dispatcher, guard *idempotency.Guard, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		guard:      guard,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventWorkOrderCreated, n.once(n.handleWorkOrderCreated))
	n.dispatcher.Subscribe(events.EventWorkOrderAssigned, n.once(n.handleWorkOrderAssigned))
	n.dispatcher.Subscribe(events.EventWorkOrderScheduled, n.once(n.handleStatusChanged))
	n.dispatcher.Subscribe(events.EventWorkOrderStatusChanged, n.once(n.handleStatusChanged))
	n.dispatcher.Subscribe(events.EventPayrollStatusChanged, n.once(n.handleStatusChanged))
	n.dispatcher.Subscribe(events.EventPayrollPosted, n.once(n.handlePayrollPosted))
	n.dispatcher.Subscribe(events.EventQuotationStatusChanged, n.once(n.handleStatusChanged))
}

// once skips events whose id was already handled. Events without an id, or a
// guard that cannot be reached, fall through to the handler.
func (n *NotificationService) once(handler events.EventHandler) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		if n.guard == nil || event.ID == "" {
			return handler(ctx, event)
		}
		seen, err := n.guard.IsIdempotent(ctx, notificationScope+string(event.Type), event.ID)
		if err != nil {
			n.logger.Warn("notification dedupe unavailable", append(eventFields(event), zap.Error(err))...)
			return handler(ctx, event)
		}
		if seen {
			n.logger.Debug("skipping redelivered event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
			return nil
		}
		return handler(ctx, event)
	}
}

func (n *NotificationService) handleWorkOrderCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("WorkOrderCreated", eventFields(event)...)
	n.notifyRequester(ctx, event)
	return nil
}

func (n *NotificationService) handleWorkOrderAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("WorkOrderAssigned", eventFields(event)...)
	if payload, ok := event.Payload.(events.AssignedPayload); ok {
		n.logger.Debug("notify technician",
			zap.String("technician_id", payload.AssigneeID),
			zap.String("work_order_id", event.EntityID))
	}
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("StatusChanged", eventFields(event)...)
	return nil
}

func (n *NotificationService) handlePayrollPosted(ctx context.Context, event events.Event) error {
	n.logger.Info("PayrollPosted", eventFields(event)...)
	return nil
}

func (n *NotificationService) notifyRequester(ctx context.Context, event events.Event) {
	n.logger.Debug("notifyRequester",
		zap.String("queue", n.cfg.QueueKey),
		zap.String("user_id", event.Actor.UserID),
		zap.String("event_type", string(event.Type)))
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("entity_kind", string(event.EntityKind)),
		zap.String("entity_id", event.EntityID),
		zap.Any("payload", event.Payload),
	}
}
