package domain

import "time"

// LogAction names an audited occurrence.
type LogAction string

const (
	LogActionTicketCreated LogAction = "ticket_created"
	LogActionTicketClosed  LogAction = "ticket_closed"
	LogActionQuickResponse LogAction = "quick_response"
	LogActionTicketRated   LogAction = "ticket_rated"
)

// LogEntry is an immutable audit trail entry.
type LogEntry struct {
	ID        string
	GuildID   string
	Action    LogAction
	Details   *string
	UserID    *string
	TicketID  *string
	CreatedAt time.Time
}
