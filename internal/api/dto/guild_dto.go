package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// LogEntryResponse is an audit trail entry.
type LogEntryResponse struct {
	ID        string           `json:"id"`
	Action    domain.LogAction `json:"action"`
	Details   *string          `json:"details"`
	UserID    *string          `json:"user_id"`
	TicketID  *string          `json:"ticket_id"`
	CreatedAt time.Time        `json:"created_at"`
}

// WebhookResponse describes a subscription. The secret itself is never
// exposed.
type WebhookResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	HasSecret bool      `json:"has_secret"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLogEntries maps audit entries.
func NewLogEntries(entries []domain.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			Details:   e.Details,
			UserID:    e.UserID,
			TicketID:  e.TicketID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// NewWebhook maps a subscription.
func NewWebhook(w *domain.WebhookSubscription) WebhookResponse {
	events := w.Events
	if events == nil {
		events = []string{}
	}
	return WebhookResponse{
		ID:        w.ID,
		Name:      w.Name,
		URL:       w.URL,
		Events:    events,
		Enabled:   w.Enabled,
		HasSecret: w.HasSecret(),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
