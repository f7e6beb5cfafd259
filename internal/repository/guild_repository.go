package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// GuildRepository reads dashboard-managed guild settings.
type GuildRepository interface {
	GetConfig(ctx context.Context, guildID string) (*domain.GuildConfig, error)
	GetMessage(ctx context.Context, guildID, key string) (*domain.GuildMessage, error)
}

type guildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository builds repository.
func NewGuildRepository(pool *pgxpool.Pool) GuildRepository {
	return &guildRepository{pool: pool}
}

func (r *guildRepository) GetConfig(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	const query = `
        SELECT guild_id, ticket_category_id, support_role_id, enable_quick_responses,
               enable_rating, enable_transcripts, created_at, updated_at
        FROM guild_configs WHERE guild_id=$1`
	var cfg domain.GuildConfig
	if err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&cfg.TicketCategoryID,
		&cfg.SupportRoleID,
		&cfg.EnableQuickResponses,
		&cfg.EnableRating,
		&cfg.EnableTranscripts,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (r *guildRepository) GetMessage(ctx context.Context, guildID, key string) (*domain.GuildMessage, error) {
	const query = `
        SELECT guild_id, key, content, embed_title, embed_desc, embed_color
        FROM messages WHERE guild_id=$1 AND key=$2`
	var msg domain.GuildMessage
	if err := r.pool.QueryRow(ctx, query, guildID, key).Scan(
		&msg.GuildID,
		&msg.Key,
		&msg.Content,
		&msg.EmbedTitle,
		&msg.EmbedDesc,
		&msg.EmbedColor,
	); err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}
