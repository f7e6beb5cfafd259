package action

import "strings"

// RatingFooterPrefix starts the footer of every rating prompt. The ticket id
// follows it, so a rating press can be resolved without router state.
const RatingFooterPrefix = "Ticket ID: "

// RatingFooter renders the rating prompt footer for ticketID.
func RatingFooter(ticketID string) string {
	return RatingFooterPrefix + ticketID
}

// TicketIDFromFooter extracts the ticket id from a rating prompt footer.
func TicketIDFromFooter(footer string) (string, bool) {
	if !strings.HasPrefix(footer, RatingFooterPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(footer, RatingFooterPrefix))
	return id, id != ""
}
