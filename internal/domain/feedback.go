package domain

import "time"

const (
	MinRatingStars = 1
	MaxRatingStars = 5
)

// QuickResponse is an append-only helpful/not-helpful vote on a ticket.
type QuickResponse struct {
	ID         string
	TicketID   string
	UserID     string
	WasHelpful bool
	CreatedAt  time.Time
}

// Rating is the post-closure star rating. One per ticket.
type Rating struct {
	ID        string
	TicketID  string
	UserID    string
	Stars     int
	Feedback  *string
	CreatedAt time.Time
}

// ValidStars reports whether stars falls inside the accepted range.
func ValidStars(stars int) bool {
	return stars >= MinRatingStars && stars <= MaxRatingStars
}
