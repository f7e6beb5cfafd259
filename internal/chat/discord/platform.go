// Package discord adapts the chat contract to the Discord API.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/chat"
)

// maxHistoryPage is the largest page the messages endpoint returns.
const maxHistoryPage = 100

// restClient is the subset of *discordgo.Session the platform calls.
type restClient interface {
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Platform implements chat.Platform over the Discord REST API.
type Platform struct {
	client    restClient
	botUserID func() string
	logger    *zap.Logger
}

var _ chat.Platform = (*Platform)(nil)

// NewPlatform wraps a session. botUserID is read on every channel creation
// because the bot's identity is only known once the gateway is ready.
func NewPlatform(client restClient, botUserID func() string, logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	if botUserID == nil {
		botUserID = func() string { return "" }
	}
	return &Platform{client: client, botUserID: botUserID, logger: logger}
}

func (p *Platform) CreateChannel(ctx context.Context, spec chat.ChannelSpec) (*chat.Channel, error) {
	overwrites := spec.Overwrites
	if botID := p.botUserID(); botID != "" {
		overwrites = append(append([]chat.PermissionOverwrite(nil), overwrites...), chat.PermissionOverwrite{
			TargetID: botID,
			Kind:     chat.OverwriteMember,
			Allow:    chat.PermissionView | chat.PermissionSend | chat.PermissionManage,
		})
	}

	created, err := p.client.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", spec.Name, err)
	}
	return &chat.Channel{ID: created.ID, GuildID: created.GuildID, Name: created.Name}, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, msg chat.OutgoingMessage) (string, error) {
	sent, err := p.client.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return sent.ID, nil
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID string, msg chat.OutgoingMessage) (string, error) {
	dm, err := p.client.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("open dm with %s: %w", userID, err)
	}
	return p.SendMessage(ctx, dm.ID, msg)
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := p.client.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

// FetchRecentMessages returns the newest limit messages, oldest first.
func (p *Platform) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	page, err := p.client.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages of %s: %w", channelID, err)
	}

	out := make([]chat.Message, 0, len(page))
	// The API returns newest first.
	for i := len(page) - 1; i >= 0; i-- {
		if page[i] == nil {
			continue
		}
		out = append(out, fromMessage(page[i]))
	}
	return out, nil
}
