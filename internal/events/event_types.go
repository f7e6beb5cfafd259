package events

import (
	"time"
)

// EventType enumerates supported event identifiers. The string values are
// the names webhook subscriptions opt into.
type EventType string

const (
	EventTicketCreated EventType = "ticket_created"
	EventTicketClosed  EventType = "ticket_closed"
	EventTicketRated   EventType = "ticket_rated"
	EventQuickResponse EventType = "quick_response"
)

// AllEventTypes lists every event the engine publishes.
func AllEventTypes() []EventType {
	return []EventType{EventTicketCreated, EventTicketClosed, EventTicketRated, EventQuickResponse}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID     string  `json:"ticketId"`
	ChannelID    string  `json:"channelId"`
	UserID       string  `json:"userId"`
	Number       int     `json:"number"`
	CategoryName *string `json:"categoryName,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketID string `json:"ticketId"`
	ClosedBy string `json:"closedBy"`
	Reason   string `json:"reason,omitempty"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	Stars    int    `json:"stars"`
}

// QuickResponsePayload payload.
type QuickResponsePayload struct {
	TicketID   string `json:"ticketId"`
	UserID     string `json:"userId"`
	WasHelpful bool   `json:"wasHelpful"`
}
