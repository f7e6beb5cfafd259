package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// GuildHandler serves a guild's audit trail and webhook subscriptions.
type GuildHandler struct {
	audit         *service.AuditService
	notifications *service.NotificationService
}

// NewGuildHandler constructs handler.
func NewGuildHandler(audit *service.AuditService, notifications *service.NotificationService) *GuildHandler {
	return &GuildHandler{audit: audit, notifications: notifications}
}

// Logs GET /api/guilds/:guildId/logs.
func (h *GuildHandler) Logs(c *fiber.Ctx) error {
	limit := clamp(parseInt(c.Query("limit"), defaultPageSize), maxPageSize)
	entries, err := h.audit.List(c.UserContext(), c.Params("guildId"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLogEntries(entries)})
}

// Webhooks GET /api/guilds/:guildId/webhooks.
func (h *GuildHandler) Webhooks(c *fiber.Ctx) error {
	webhooks, err := h.notifications.ListWebhooks(c.UserContext(), c.Params("guildId"))
	if err != nil {
		return err
	}
	items := make([]dto.WebhookResponse, 0, len(webhooks))
	for i := range webhooks {
		items = append(items, dto.NewWebhook(&webhooks[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
