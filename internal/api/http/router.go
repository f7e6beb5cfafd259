package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Guilds  *handlers.GuildHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	guild := app.Group("/api/guilds/:guildId")
	guild.Get("/tickets", cfg.Tickets.ListTickets)
	guild.Get("/tickets/:ticketId", cfg.Tickets.GetTicket)
	guild.Get("/stats", cfg.Tickets.Stats)
	guild.Get("/logs", cfg.Guilds.Logs)
	guild.Get("/webhooks", cfg.Guilds.Webhooks)
}
