package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusClosed   TicketStatus = "CLOSED"
	TicketStatusArchived TicketStatus = "ARCHIVED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusClosed, TicketStatusArchived:
		return true
	}
	return false
}

// Ticket is one user's support request, bound 1:1 to a private channel.
// At most one ticket per (GuildID, UserID) may be OPEN.
type Ticket struct {
	ID           string
	GuildID      string
	ChannelID    string
	UserID       string
	Number       int
	CategoryName *string
	Status       TicketStatus
	ClosedAt     *time.Time
	ClosedBy     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOpen reports whether the ticket still accepts lifecycle transitions.
func (t *Ticket) IsOpen() bool {
	return t != nil && t.Status == TicketStatusOpen
}

// TicketStats aggregates per-guild counters for the dashboard.
type TicketStats struct {
	Total         int
	Open          int
	Closed        int
	AverageRating float64
}
