// Package action parses interaction identifiers into typed actions.
//
// Identifiers are the custom ids carried by chat buttons:
//
//	create_ticket_<category>
//	close_ticket
//	quick_response_helpful | quick_response_not_helpful
//	rating_<1..5>
package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	createTicketPrefix  = "create_ticket_"
	closeTicketID       = "close_ticket"
	quickResponsePrefix = "quick_response_"
	ratingPrefix        = "rating_"

	helpfulSuffix    = "helpful"
	notHelpfulSuffix = "not_helpful"
)

// Kind names an action variant.
type Kind string

const (
	KindCreateTicket  Kind = "create_ticket"
	KindCloseTicket   Kind = "close_ticket"
	KindQuickResponse Kind = "quick_response"
	KindRate          Kind = "rating"
	KindIgnored       Kind = "ignored"
)

// Action is one of CreateTicket, CloseTicket, QuickResponse, Rate or Ignored.
type Action interface {
	Kind() Kind
	ID() string
}

// CreateTicket opens a ticket in the given category.
type CreateTicket struct {
	Category string
}

// CloseTicket closes the ticket bound to the invoking channel.
type CloseTicket struct{}

// QuickResponse records whether support was helpful.
type QuickResponse struct {
	Helpful bool
}

// Rate records a star rating for the ticket named in the prompt footer.
type Rate struct {
	Stars int
}

// Ignored is any identifier this bot does not handle.
type Ignored struct {
	Raw string
}

func (CreateTicket) Kind() Kind  { return KindCreateTicket }
func (CloseTicket) Kind() Kind   { return KindCloseTicket }
func (QuickResponse) Kind() Kind { return KindQuickResponse }
func (Rate) Kind() Kind          { return KindRate }
func (Ignored) Kind() Kind       { return KindIgnored }

func (a CreateTicket) ID() string { return CreateTicketID(a.Category) }
func (CloseTicket) ID() string    { return closeTicketID }
func (a QuickResponse) ID() string {
	return QuickResponseID(a.Helpful)
}
func (a Rate) ID() string    { return RatingID(a.Stars) }
func (a Ignored) ID() string { return a.Raw }

// CreateTicketID builds the identifier of a category button.
func CreateTicketID(category string) string {
	return createTicketPrefix + category
}

// CloseTicketID is the identifier of the close button.
func CloseTicketID() string {
	return closeTicketID
}

// QuickResponseID builds a quick-response identifier.
func QuickResponseID(helpful bool) string {
	if helpful {
		return quickResponsePrefix + helpfulSuffix
	}
	return quickResponsePrefix + notHelpfulSuffix
}

// RatingID builds a rating identifier.
func RatingID(stars int) string {
	return ratingPrefix + strconv.Itoa(stars)
}

// Parse classifies a custom id. Unknown identifiers yield Ignored with no
// error. A rating identifier whose star count is not an integer in range
// fails with an INVALID_RATING error.
func Parse(customID string) (Action, error) {
	switch {
	case customID == closeTicketID:
		return CloseTicket{}, nil
	case strings.HasPrefix(customID, createTicketPrefix):
		category := strings.TrimPrefix(customID, createTicketPrefix)
		if category == "" {
			return Ignored{Raw: customID}, nil
		}
		return CreateTicket{Category: category}, nil
	case strings.HasPrefix(customID, quickResponsePrefix):
		switch strings.TrimPrefix(customID, quickResponsePrefix) {
		case helpfulSuffix:
			return QuickResponse{Helpful: true}, nil
		case notHelpfulSuffix:
			return QuickResponse{Helpful: false}, nil
		}
		return Ignored{Raw: customID}, nil
	case strings.HasPrefix(customID, ratingPrefix):
		raw := strings.TrimPrefix(customID, ratingPrefix)
		stars, err := strconv.Atoi(raw)
		// Only the canonical form counts; "+3" and "05" parse but are not ids we issue.
		if err != nil || strconv.Itoa(stars) != raw || !domain.ValidStars(stars) {
			return nil, errorutil.NewInvalidRating(
				fmt.Sprintf("rating must be between %d and %d", domain.MinRatingStars, domain.MaxRatingStars),
				map[string]any{"custom_id": customID})
		}
		return Rate{Stars: stars}, nil
	}
	return Ignored{Raw: customID}, nil
}
