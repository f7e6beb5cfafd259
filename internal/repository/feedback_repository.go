package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// FeedbackRepository persists quick responses and ratings.
type FeedbackRepository interface {
	CreateQuickResponse(ctx context.Context, response *domain.QuickResponse) error
	CreateRating(ctx context.Context, rating *domain.Rating) error
	ListQuickResponses(ctx context.Context, ticketID string) ([]domain.QuickResponse, error)
	GetRatingByTicket(ctx context.Context, ticketID string) (*domain.Rating, error)
}

type feedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository builds repository.
func NewFeedbackRepository(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepository{pool: pool}
}

func (r *feedbackRepository) CreateQuickResponse(ctx context.Context, response *domain.QuickResponse) error {
	const query = `
        INSERT INTO quick_responses (ticket_id, user_id, was_helpful)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		response.TicketID,
		response.UserID,
		response.WasHelpful,
	).Scan(&response.ID, &response.CreatedAt)
}

// CreateRating returns ErrRatingExists when the ticket is already rated.
func (r *feedbackRepository) CreateRating(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (ticket_id, user_id, stars, feedback)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		rating.TicketID,
		rating.UserID,
		rating.Stars,
		rating.Feedback,
	).Scan(&rating.ID, &rating.CreatedAt)
	if isUniqueViolation(err, constraintRatingTicket) {
		return ErrRatingExists
	}
	return err
}

func (r *feedbackRepository) ListQuickResponses(ctx context.Context, ticketID string) ([]domain.QuickResponse, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `
        SELECT id, ticket_id, user_id, was_helpful, created_at
        FROM quick_responses WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.QuickResponse
	for rows.Next() {
		var qr domain.QuickResponse
		if err := rows.Scan(&qr.ID, &qr.TicketID, &qr.UserID, &qr.WasHelpful, &qr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, qr)
	}
	return result, rows.Err()
}

func (r *feedbackRepository) GetRatingByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	if !validID(ticketID) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, ticket_id, user_id, stars, feedback, created_at
        FROM ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.UserID,
		&rating.Stars,
		&rating.Feedback,
		&rating.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &rating, nil
}
