package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// WebhookRepository reads webhook subscriptions. The engine never mutates
// them; Create exists for provisioning and tests.
type WebhookRepository interface {
	ListEnabledForEvent(ctx context.Context, guildID, event string) ([]domain.WebhookSubscription, error)
	ListByGuild(ctx context.Context, guildID string) ([]domain.WebhookSubscription, error)
	Create(ctx context.Context, webhook *domain.WebhookSubscription) error
}

type webhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository builds repository.
func NewWebhookRepository(pool *pgxpool.Pool) WebhookRepository {
	return &webhookRepository{pool: pool}
}

const webhookColumns = `id, guild_id, name, url, secret, events, enabled, created_at, updated_at`

func (r *webhookRepository) ListEnabledForEvent(ctx context.Context, guildID, event string) ([]domain.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks
        WHERE guild_id=$1 AND enabled AND $2 = ANY(events)
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, guildID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (r *webhookRepository) ListByGuild(ctx context.Context, guildID string) ([]domain.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE guild_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (r *webhookRepository) Create(ctx context.Context, webhook *domain.WebhookSubscription) error {
	const query = `
        INSERT INTO webhooks (guild_id, name, url, secret, events, enabled)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		webhook.GuildID,
		webhook.Name,
		webhook.URL,
		webhook.Secret,
		webhook.Events,
		webhook.Enabled,
	).Scan(&webhook.ID, &webhook.CreatedAt, &webhook.UpdatedAt)
}

func scanWebhooks(rows pgx.Rows) ([]domain.WebhookSubscription, error) {
	var result []domain.WebhookSubscription
	for rows.Next() {
		var wh domain.WebhookSubscription
		if err := rows.Scan(
			&wh.ID,
			&wh.GuildID,
			&wh.Name,
			&wh.URL,
			&wh.Secret,
			&wh.Events,
			&wh.Enabled,
			&wh.CreatedAt,
			&wh.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, wh)
	}
	return result, rows.Err()
}
