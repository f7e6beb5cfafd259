package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// LogRepository stores audit entries. Entries are append-only.
type LogRepository interface {
	Create(ctx context.Context, entry *domain.LogEntry) error
	ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.LogEntry, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.LogEntry, error)
}

type logRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository builds repository.
func NewLogRepository(pool *pgxpool.Pool) LogRepository {
	return &logRepository{pool: pool}
}

func (r *logRepository) Create(ctx context.Context, entry *domain.LogEntry) error {
	const query = `
        INSERT INTO logs (guild_id, action, details, user_id, ticket_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.GuildID,
		entry.Action,
		entry.Details,
		entry.UserID,
		entry.TicketID,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *logRepository) ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, guild_id, action, details, user_id, ticket_id, created_at
        FROM logs WHERE guild_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func (r *logRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.LogEntry, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT id, guild_id, action, details, user_id, ticket_id, created_at
        FROM logs WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func scanLogEntries(rows pgx.Rows) ([]domain.LogEntry, error) {
	var result []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.GuildID,
			&entry.Action,
			&entry.Details,
			&entry.UserID,
			&entry.TicketID,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
