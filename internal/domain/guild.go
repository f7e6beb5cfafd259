package domain

import "time"

// GuildConfig holds the per-guild settings the engine reads. It is
// written by the dashboard, never by the engine.
type GuildConfig struct {
	GuildID              string
	TicketCategoryID     *string
	SupportRoleID        *string
	EnableQuickResponses bool
	EnableRating         bool
	EnableTranscripts    bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultGuildConfig is used for guilds that never saved a configuration.
func DefaultGuildConfig(guildID string) *GuildConfig {
	return &GuildConfig{GuildID: guildID}
}

// Message template keys.
const (
	MessageKeyTicketCreated = "ticket_created"
)

// GuildMessage is a customizable message template.
type GuildMessage struct {
	GuildID    string
	Key        string
	Content    string
	EmbedTitle *string
	EmbedDesc  *string
	EmbedColor *string
}
