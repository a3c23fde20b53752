package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/discord"
	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/events"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/repository"
)

// NotificationService turns ticket events into Discord webhook posts. Delivery is a
// single best-effort attempt; failures are logged and counted, never returned to the
// code that changed the ticket.
type NotificationService struct {
	dispatcher events.Dispatcher
	services   repository.ServiceRepository
	sender     discord.Sender
	builder    discord.Builder
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, services repository.ServiceRepository, sender discord.Sender, metrics *observability.Metrics, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		services:   services,
		sender:     sender,
		builder:    discord.NewBuilder(cfg.FooterText),
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketTransitioned, n.handleTicketTransitioned)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	svc, ok := n.webhookTarget(ctx, event)
	if !ok {
		return nil
	}
	msg := n.builder.TicketCreated(event.Ticket, *svc, event.Timestamp)
	n.deliver(ctx, svc, "created", event, msg)
	return nil
}

func (n *NotificationService) handleTicketTransitioned(ctx context.Context, event events.Event) error {
	svc, ok := n.webhookTarget(ctx, event)
	if !ok {
		return nil
	}
	msg := n.builder.TicketTransitioned(event.Ticket, *svc, event.Action, event.Actor, event.Notes, event.Timestamp)
	n.deliver(ctx, svc, string(event.Action), event, msg)
	return nil
}

// webhookTarget resolves the service of the event's ticket; no service or no webhook
// means there is nothing to send.
func (n *NotificationService) webhookTarget(ctx context.Context, event events.Event) (*domain.Service, bool) {
	svc, err := n.services.GetByName(ctx, event.Ticket.ServiceRef)
	if err != nil {
		if !repository.IsNotFound(err) {
			n.logger.Warn("load service for notification failed",
				zap.String("service", event.Ticket.ServiceRef),
				zap.Int64("ticket_id", event.Ticket.ID),
				zap.Error(err))
		}
		return nil, false
	}
	if !svc.HasWebhook() {
		n.logger.Debug("no webhook configured",
			zap.String("service", svc.Name),
			zap.Int64("ticket_id", event.Ticket.ID))
		return nil, false
	}
	return svc, true
}

func (n *NotificationService) deliver(ctx context.Context, svc *domain.Service, kind string, event events.Event, msg discord.Message) {
	err := n.sender.Send(ctx, svc.WebhookURL, msg)
	n.metrics.RecordDelivery(svc.Name, kind, err == nil)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("service", svc.Name),
			zap.String("kind", kind),
			zap.String("event_id", event.ID),
			zap.Int64("ticket_id", event.Ticket.ID),
			zap.Error(err))
		return
	}
	n.logger.Debug("webhook delivered",
		zap.String("service", svc.Name),
		zap.String("kind", kind),
		zap.Int64("ticket_id", event.Ticket.ID))
}

// SendTest posts the canned test message to the service's webhook and returns the
// delivery outcome to the caller.
func (n *NotificationService) SendTest(ctx context.Context, svc domain.Service) error {
	if !svc.HasWebhook() {
		return discord.ErrNoWebhook
	}
	err := n.sender.Send(ctx, svc.WebhookURL, n.builder.WebhookTest(svc, n.now()))
	n.metrics.RecordDelivery(svc.Name, "test", err == nil)
	return err
}
