package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// FeedbackService records quick responses and star ratings.
type FeedbackService struct {
	tickets    repository.TicketRepository
	feedback   repository.FeedbackRepository
	audit      *AuditService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// FeedbackDependencies bundles collaborators for the feedback service.
type FeedbackDependencies struct {
	TicketRepo   repository.TicketRepository
	FeedbackRepo repository.FeedbackRepository
	Audit        *AuditService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		tickets:    deps.TicketRepo,
		feedback:   deps.FeedbackRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// RecordQuickResponse appends a helpful/not-helpful vote for the ticket bound
// to channelID. Repeated votes are all kept.
func (f *FeedbackService) RecordQuickResponse(ctx context.Context, channelID, userID string, helpful bool) (*domain.QuickResponse, error) {
	ticket, err := f.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewNotTicketChannel(channelID)
		}
		return nil, err
	}

	response := &domain.QuickResponse{
		TicketID:   ticket.ID,
		UserID:     userID,
		WasHelpful: helpful,
	}
	if err := f.feedback.CreateQuickResponse(ctx, response); err != nil {
		return nil, err
	}

	verdict := "not helpful"
	if helpful {
		verdict = "helpful"
	}
	f.audit.Record(ctx, domain.LogEntry{
		GuildID:  ticket.GuildID,
		Action:   domain.LogActionQuickResponse,
		Details:  strPtr(fmt.Sprintf("User %s marked response as %s", userID, verdict)),
		UserID:   strPtr(userID),
		TicketID: strPtr(ticket.ID),
	})
	publishEvent(ctx, f.dispatcher, events.Event{
		Type:     events.EventQuickResponse,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  userID,
		Payload: events.QuickResponsePayload{
			TicketID:   ticket.ID,
			UserID:     userID,
			WasHelpful: helpful,
		},
	})
	return response, nil
}

// RecordRating stores the single star rating of a closed ticket.
func (f *FeedbackService) RecordRating(ctx context.Context, ticketID, userID string, stars int) (*domain.Rating, error) {
	if !domain.ValidStars(stars) {
		return nil, errorutil.NewInvalidRating(
			fmt.Sprintf("rating must be between %d and %d", domain.MinRatingStars, domain.MaxRatingStars),
			map[string]any{"stars": stars})
	}

	ticket, err := f.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if ticket.IsOpen() {
		return nil, errorutil.NewInvalidRating("ticket is still open", map[string]any{"ticket_id": ticketID})
	}

	rating := &domain.Rating{
		TicketID: ticket.ID,
		UserID:   userID,
		Stars:    stars,
	}
	if err := f.feedback.CreateRating(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrRatingExists) {
			return nil, errorutil.NewDuplicateRating(ticket.ID)
		}
		return nil, err
	}

	f.audit.Record(ctx, domain.LogEntry{
		GuildID:  ticket.GuildID,
		Action:   domain.LogActionTicketRated,
		Details:  strPtr(fmt.Sprintf("User %s rated ticket %d with %d stars", userID, ticket.Number, stars)),
		UserID:   strPtr(userID),
		TicketID: strPtr(ticket.ID),
	})
	f.metrics.RecordTransition(string(domain.LogActionTicketRated))
	publishEvent(ctx, f.dispatcher, events.Event{
		Type:     events.EventTicketRated,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  userID,
		Payload: events.TicketRatedPayload{
			TicketID: ticket.ID,
			UserID:   userID,
			Stars:    stars,
		},
	})
	return rating, nil
}
