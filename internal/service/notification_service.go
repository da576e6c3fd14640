package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-countdown/internal/config"
	"github.com/spec-kit/sla-countdown/internal/domain"
	"github.com/spec-kit/sla-countdown/internal/events"
)

// NotificationService escalates SLA events to the crisis channels.
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
	n.dispatcher.Subscribe(events.EventSLAExpired, n.handleSLAExpired)
	n.dispatcher.Subscribe(events.EventSLASnapshotApplied, n.handleSnapshotApplied)
}

func (n *NotificationService) handleSLAExpired(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.SLAExpiredPayload)
	n.logger.Warn("SLAExpired",
		zap.String("ticket_id", event.TicketID),
		zap.String("priority", string(payload.Priority)),
		zap.Int("observers", payload.Observers))
	if isCrisis(payload.Priority) {
		n.sendWhatsAppEscalationStub(ctx, event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSnapshotApplied(ctx context.Context, event events.Event) error {
	n.logger.Debug("SLASnapshotApplied", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

// isCrisis reports whether a breach escalates to the on-call WhatsApp line.
// Unknown priorities escalate.
func isCrisis(priority domain.TicketPriority) bool {
	switch priority {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium:
		return false
	default:
		return true
	}
}

func (n *NotificationService) sendWhatsAppEscalationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WhatsAppNumber) == "" {
		return
	}
	n.logger.Info("sendWhatsAppEscalationStub",
		zap.String("to", n.cfg.WhatsAppNumber),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
