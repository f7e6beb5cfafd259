package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TicketsHandler serves the read-only guild ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/guilds/:guildId/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		GuildID: c.Params("guildId"),
		Limit:   clamp(parseInt(c.Query("limit"), defaultPageSize), maxPageSize),
		Offset:  parseNonNegative(c.Query("offset")),
	}
	if status := c.Query("status"); status != "" {
		st := domain.TicketStatus(status)
		filter.Status = &st
	}
	if userID := c.Query("user_id"); userID != "" {
		filter.UserID = &userID
	}

	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/guilds/:guildId/tickets/:ticketId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID := c.Params("ticketId")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}
	detail, err := h.service.GetTicket(c.UserContext(), c.Params("guildId"), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(detail.Ticket, detail.QuickResponses, detail.Rating, detail.Logs)})
}

// Stats GET /api/guilds/:guildId/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), c.Params("guildId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Total:         stats.Total,
		Open:          stats.Open,
		Closed:        stats.Closed,
		AverageRating: stats.AverageRating,
	}})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseNonNegative(val string) int {
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func clamp(n, limit int) int {
	if n > limit {
		return limit
	}
	return n
}
