package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID           string              `json:"id"`
	GuildID      string              `json:"guild_id"`
	ChannelID    string              `json:"channel_id"`
	UserID       string              `json:"user_id"`
	Number       int                 `json:"number"`
	CategoryName *string             `json:"category_name"`
	Status       domain.TicketStatus `json:"status"`
	ClosedAt     *time.Time          `json:"closed_at"`
	ClosedBy     *string             `json:"closed_by"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TicketDetailResponse is a ticket with its feedback and audit trail.
type TicketDetailResponse struct {
	TicketSummary
	QuickResponses []QuickResponseResponse `json:"quick_responses"`
	Rating         *RatingResponse         `json:"rating"`
	Logs           []LogEntryResponse      `json:"logs"`
}

// QuickResponseResponse is one helpful/not-helpful vote.
type QuickResponseResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	WasHelpful bool      `json:"was_helpful"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingResponse is the post-closure rating.
type RatingResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Stars     int       `json:"stars"`
	Feedback  *string   `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketStatsResponse aggregates a guild's tickets.
type TicketStatsResponse struct {
	Total         int     `json:"total"`
	Open          int     `json:"open"`
	Closed        int     `json:"closed"`
	AverageRating float64 `json:"average_rating"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           t.ID,
		GuildID:      t.GuildID,
		ChannelID:    t.ChannelID,
		UserID:       t.UserID,
		Number:       t.Number,
		CategoryName: t.CategoryName,
		Status:       t.Status,
		ClosedAt:     t.ClosedAt,
		ClosedBy:     t.ClosedBy,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and its related records.
func NewTicketDetail(t *domain.Ticket, responses []domain.QuickResponse, rating *domain.Rating, logs []domain.LogEntry) TicketDetailResponse {
	detail := TicketDetailResponse{
		TicketSummary:  NewTicketSummary(t),
		QuickResponses: make([]QuickResponseResponse, 0, len(responses)),
		Logs:           NewLogEntries(logs),
	}
	for _, qr := range responses {
		detail.QuickResponses = append(detail.QuickResponses, QuickResponseResponse{
			ID:         qr.ID,
			UserID:     qr.UserID,
			WasHelpful: qr.WasHelpful,
			CreatedAt:  qr.CreatedAt,
		})
	}
	if rating != nil {
		detail.Rating = &RatingResponse{
			ID:        rating.ID,
			UserID:    rating.UserID,
			Stars:     rating.Stars,
			Feedback:  rating.Feedback,
			CreatedAt: rating.CreatedAt,
		}
	}
	return detail
}
