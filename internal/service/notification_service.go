package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
)

// NotificationService reacts to domain events. Failed durable writes are
// surfaced here so they reach an operator channel instead of vanishing.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleRequestCreated)
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventRequestTechnicianAssigned, n.handleTechnicianAssigned)
	n.dispatcher.Subscribe(events.EventRequestWriteFailed, n.handleWriteFailed)
}

func (n *NotificationService) handleRequestCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestCreated", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestStatusChanged", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTechnicianAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestTechnicianAssigned", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleWriteFailed(ctx context.Context, event events.Event) error {
	n.logger.Error("RequestWriteFailed", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("request_id", event.RequestID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("request_id", event.RequestID),
		zap.String("event_type", string(event.Type)))
}
