package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketFilter captures dashboard listing parameters.
type TicketFilter struct {
	GuildID string
	Status  *domain.TicketStatus
	UserID  *string
	Limit   int
	Offset  int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	FindOpenByUser(ctx context.Context, guildID, userID string) (*domain.Ticket, error)
	CloseOpen(ctx context.Context, id, closedBy string, closedAt time.Time) (*domain.Ticket, error)
	CountByGuild(ctx context.Context, guildID string) (int, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, guildID string) (domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, guild_id, channel_id, user_id, number, category_name, status,
               closed_at, closed_by, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (guild_id, channel_id, user_id, number, category_name, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.GuildID,
		ticket.ChannelID,
		ticket.UserID,
		ticket.Number,
		ticket.CategoryName,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isUniqueViolation(err, constraintOneOpenTicket) {
		return ErrOpenTicketExists
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) FindOpenByUser(ctx context.Context, guildID, userID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE guild_id=$1 AND user_id=$2 AND status='OPEN'`
	return r.fetchSingle(ctx, query, guildID, userID)
}

// CloseOpen transitions an OPEN ticket to CLOSED. The status predicate makes
// concurrent closes race-free: only one caller observes the transition.
func (r *ticketRepository) CloseOpen(ctx context.Context, id, closedBy string, closedAt time.Time) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrTicketNotOpen
	}
	query := `
        UPDATE tickets SET status='CLOSED', closed_at=$2, closed_by=$3, updated_at=NOW()
        WHERE id=$1 AND status='OPEN'
        RETURNING ` + ticketColumns
	ticket, err := r.fetchSingle(ctx, query, id, closedAt, closedBy)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrTicketNotOpen
	}
	return ticket, err
}

func (r *ticketRepository) CountByGuild(ctx context.Context, guildID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE guild_id=$1`, guildID).Scan(&count)
	return count, err
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, args...), &ticket); err != nil {
		return nil, notFound(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"guild_id=$1"}
	args := []any{filter.GuildID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context, guildID string) (domain.TicketStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='OPEN'),
               COUNT(*) FILTER (WHERE status='CLOSED'),
               COALESCE((SELECT AVG(r.stars)::float8 FROM ratings r JOIN tickets t ON t.id=r.ticket_id WHERE t.guild_id=$1), 0)
        FROM tickets WHERE guild_id=$1`
	var stats domain.TicketStats
	err := r.pool.QueryRow(ctx, query, guildID).Scan(&stats.Total, &stats.Open, &stats.Closed, &stats.AverageRating)
	return stats, err
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.GuildID,
		&ticket.ChannelID,
		&ticket.UserID,
		&ticket.Number,
		&ticket.CategoryName,
		&ticket.Status,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
