package repository

//go:generate mockgen -destination=mock/mock_repository.go -package=mock github.com/spec-kit/ticket-bot/internal/repository TicketRepository,GuildRepository,LogRepository

import "github.com/jackc/pgx/v5/pgxpool"

// Repos bundles the store adapters the engine consumes.
type Repos struct {
	Tickets  TicketRepository
	Feedback FeedbackRepository
	Webhooks WebhookRepository
	Logs     LogRepository
	Guilds   GuildRepository
}

// NewPostgresRepos builds pgx-backed repositories sharing one pool.
func NewPostgresRepos(pool *pgxpool.Pool) *Repos {
	return &Repos{
		Tickets:  NewTicketRepository(pool),
		Feedback: NewFeedbackRepository(pool),
		Webhooks: NewWebhookRepository(pool),
		Logs:     NewLogRepository(pool),
		Guilds:   NewGuildRepository(pool),
	}
}
