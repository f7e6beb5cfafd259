package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrOpenTicketExists is returned when the one-open-ticket-per-user index rejects an insert.
	ErrOpenTicketExists = errors.New("repository: open ticket already exists")
	// ErrRatingExists is returned when a ticket already carries a rating.
	ErrRatingExists = errors.New("repository: rating already exists")
	// ErrTicketNotOpen is returned when a conditional close matched no OPEN ticket.
	ErrTicketNotOpen = errors.New("repository: ticket not open")
)

// Constraint names declared in migrations/0001_init.sql.
const (
	constraintOneOpenTicket = "tickets_one_open_per_user"
	constraintRatingTicket  = "ratings_ticket_id_key"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}

// validID reports whether id can address a UUID key column. Postgres rejects
// anything else with 22P02, which callers must see as a missing row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
