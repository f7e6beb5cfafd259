package transcript

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// DefaultMessageLimit is how much channel history a transcript covers.
const DefaultMessageLimit = 100

// Capturer fetches a ticket channel's history, renders and archives it.
type Capturer struct {
	platform chat.Platform
	store    Store
	limit    int
	logger   *zap.Logger
	now      func() time.Time
}

// NewCapturer builds a Capturer. A non-positive limit uses DefaultMessageLimit.
func NewCapturer(platform chat.Platform, store Store, limit int, logger *zap.Logger) *Capturer {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return &Capturer{platform: platform, store: store, limit: limit, logger: logger, now: time.Now}
}

// Capture archives the transcript of ticket's channel and returns its location.
func (c *Capturer) Capture(ctx context.Context, ticket *domain.Ticket) (string, error) {
	messages, err := c.platform.FetchRecentMessages(ctx, ticket.ChannelID, c.limit)
	if err != nil {
		return "", fmt.Errorf("fetch channel history: %w", err)
	}

	now := c.now()
	doc, err := Render(Meta{
		TicketID:    ticket.ID,
		ChannelName: fmt.Sprintf("ticket-%d", ticket.Number),
		GeneratedAt: now,
	}, messages)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("transcript_%s_%d.html", ticket.ID, now.UnixMilli())
	location, err := c.store.Save(ctx, name, doc)
	if err != nil {
		return "", err
	}
	c.logger.Info("transcript saved",
		zap.String("ticket_id", ticket.ID),
		zap.String("location", location),
		zap.Int("messages", len(messages)))
	return location, nil
}
