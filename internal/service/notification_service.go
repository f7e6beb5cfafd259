package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/webhook"
)

// WebhookTrigger delivers one event to a guild's subscribers.
type WebhookTrigger interface {
	Trigger(ctx context.Context, guildID, event string, data any) []webhook.DeliveryResult
}

// NotificationService forwards lifecycle events to webhook subscribers.
type NotificationService struct {
	dispatcher events.Dispatcher
	trigger    WebhookTrigger
	webhooks   repository.WebhookRepository
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, trigger WebhookTrigger, webhooks repository.WebhookRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		trigger:    trigger,
		webhooks:   webhooks,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes() {
		n.dispatcher.Subscribe(eventType, n.handleEvent)
	}
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug("forwarding event to webhooks",
		zap.String("event", string(event.Type)),
		zap.String("guild_id", event.GuildID),
		zap.String("ticket_id", event.TicketID))
	if n.trigger == nil {
		return nil
	}
	n.trigger.Trigger(ctx, event.GuildID, string(event.Type), event.Payload)
	return nil
}

// ListWebhooks returns a guild's subscriptions.
func (n *NotificationService) ListWebhooks(ctx context.Context, guildID string) ([]domain.WebhookSubscription, error) {
	return n.webhooks.ListByGuild(ctx, guildID)
}
