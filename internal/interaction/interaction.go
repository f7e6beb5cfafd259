// Package interaction routes button presses to lifecycle and feedback
// operations and owns the acknowledgment contract toward the user.
package interaction

import (
	"context"

	"github.com/spec-kit/ticket-bot/internal/chat"
)

// Interaction is a platform-neutral button press.
type Interaction struct {
	ID        string
	CustomID  string
	GuildID   string
	ChannelID string
	User      chat.Member
	// MessageID and MessageFooter describe the message carrying the button.
	MessageID     string
	MessageFooter string
}

// Responder acknowledges one interaction. The platform accepts exactly one
// initial response (Reply or Defer); EditReply only follows a Defer.
type Responder interface {
	Reply(ctx context.Context, content string) error
	Defer(ctx context.Context) error
	EditReply(ctx context.Context, content string) error
	// DisableComponents removes the buttons from the message carrying the press.
	DisableComponents(ctx context.Context) error
}

// User-facing messages.
const (
	MsgGenericFailure    = "An error occurred while processing your request."
	MsgTicketCreated     = "Ticket created: %s"
	MsgAlreadyOpen       = "You already have an open ticket: %s"
	MsgAlreadyOpenNoLink = "You already have an open ticket."
	MsgCreateFailed      = "Failed to create ticket. Please contact an administrator."
	MsgNotTicketChannel  = "This is not a valid ticket channel."
	MsgAlreadyClosed     = "This ticket is already closed."
	MsgClosing           = "Ticket is being closed..."
	MsgQuickResponseDone = "Thank you for your feedback! ✅"
	MsgInvalidRating     = "Invalid rating request."
	MsgRatingFailed      = "Failed to save rating. You may have already rated this ticket."
	MsgRatingDone        = "Thank you for rating this ticket %d star%s! ⭐"
)
