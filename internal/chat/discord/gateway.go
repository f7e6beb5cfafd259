package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/interaction"
)

// Router handles one platform-neutral interaction.
type Router interface {
	Route(ctx context.Context, in interaction.Interaction, responder interaction.Responder)
}

// Gateway owns the Discord session and feeds button presses to the router.
type Gateway struct {
	session *discordgo.Session
	router  Router
	logger  *zap.Logger
	timeout time.Duration
	remove  func()

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewSession creates an unopened bot session.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return session, nil
}

// NewGateway registers the interaction handler on session. timeout bounds
// the handling of each interaction.
func NewGateway(session *discordgo.Session, router Router, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{session: session, router: router, logger: logger, timeout: timeout}
	g.remove = session.AddHandler(g.onInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			logger.Info("discord gateway ready", zap.String("bot_user_id", r.User.ID), zap.Int("guilds", len(r.Guilds)))
		}
	})
	return g
}

// Open connects to the gateway.
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Close stops accepting interactions, disconnects, and waits until the
// interactions already being routed have returned or ctx expires.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	if g.remove != nil {
		g.remove()
	}
	var closeErr error
	if g.session != nil {
		closeErr = g.session.Close()
	}

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return errors.Join(closeErr, fmt.Errorf("drain interactions: %w", ctx.Err()))
	}
}

// BotUserID returns the bot's own user id once the session is ready.
func (g *Gateway) BotUserID() string {
	return BotUserID(g.session)
}

// BotUserID reads the bot's user id from session state.
func BotUserID(session *discordgo.Session) string {
	if session == nil || session.State == nil || session.State.User == nil {
		return ""
	}
	return session.State.User.ID
}

func (g *Gateway) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	in, ok := toInteraction(ic.Interaction)
	if !ok {
		return
	}
	g.handle(in, NewResponder(s, ic.Interaction))
}

// handle routes one interaction unless the gateway is closing.
func (g *Gateway) handle(in interaction.Interaction, responder interaction.Responder) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Info("interaction dropped; shutting down", zap.String("custom_id", in.CustomID))
		return false
	}
	g.inflight.Add(1)
	g.mu.Unlock()
	defer g.inflight.Done()

	ctx := context.Background()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	g.router.Route(ctx, in, responder)
	return true
}

// toInteraction converts a component press. Other interaction types are
// not handled by this bot.
func toInteraction(i *discordgo.Interaction) (interaction.Interaction, bool) {
	if i == nil || i.Type != discordgo.InteractionMessageComponent {
		return interaction.Interaction{}, false
	}
	in := interaction.Interaction{
		ID:        i.ID,
		CustomID:  i.MessageComponentData().CustomID,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		User:      fromMember(i.Member, i.User),
	}
	if i.Message != nil {
		in.MessageID = i.Message.ID
		if len(i.Message.Embeds) > 0 && i.Message.Embeds[0] != nil && i.Message.Embeds[0].Footer != nil {
			in.MessageFooter = i.Message.Embeds[0].Footer.Text
		}
	}
	return in, true
}
