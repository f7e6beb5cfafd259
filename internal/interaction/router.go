package interaction

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/action"
	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Lifecycle is the subset of the ticket service the router drives.
type Lifecycle interface {
	OpenTicket(ctx context.Context, input service.OpenTicketInput) (*domain.Ticket, error)
	CloseTicketByChannel(ctx context.Context, channelID, closedBy, reason string) (*domain.Ticket, error)
}

// Feedback is the subset of the feedback service the router drives.
type Feedback interface {
	RecordQuickResponse(ctx context.Context, channelID, userID string, helpful bool) (*domain.QuickResponse, error)
	RecordRating(ctx context.Context, ticketID, userID string, stars int) (*domain.Rating, error)
}

// Router dispatches each interaction to exactly one handler.
type Router struct {
	lifecycle Lifecycle
	feedback  Feedback
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewRouter constructs the router.
func NewRouter(lifecycle Lifecycle, feedback Feedback, logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		lifecycle: lifecycle,
		feedback:  feedback,
		logger:    logger,
		metrics:   metrics,
	}
}

// Route handles one interaction. It never returns an error: faults are
// logged and surfaced to the user as a single generic failure notice.
func (r *Router) Route(ctx context.Context, in Interaction, responder Responder) {
	resp := track(responder)
	logger := r.logger.With(
		zap.String("interaction_id", in.ID),
		zap.String("custom_id", in.CustomID),
		zap.String("guild_id", in.GuildID),
		zap.String("channel_id", in.ChannelID),
		zap.String("user_id", in.User.UserID),
	)

	act, err := action.Parse(in.CustomID)
	if err != nil {
		logger.Info("rejected interaction", zap.Error(err))
		r.metrics.RecordInteraction(string(action.KindRate), "invalid")
		r.reply(ctx, logger, resp, MsgInvalidRating)
		return
	}
	if act.Kind() == action.KindIgnored {
		logger.Debug("ignoring unrecognized interaction")
		return
	}

	outcome := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("interaction handler panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			outcome = "panic"
			r.surfaceFailure(ctx, logger, resp)
		}
		r.metrics.RecordInteraction(string(act.Kind()), outcome)
	}()

	if err := r.dispatch(ctx, act, in, resp, logger); err != nil {
		logger.Error("interaction failed", zap.Error(err))
		outcome = "error"
		r.surfaceFailure(ctx, logger, resp)
	}
}

func (r *Router) dispatch(ctx context.Context, act action.Action, in Interaction, resp *trackedResponder, logger *zap.Logger) error {
	switch a := act.(type) {
	case action.CreateTicket:
		return r.handleCreateTicket(ctx, a, in, resp, logger)
	case action.CloseTicket:
		return r.handleCloseTicket(ctx, in, resp)
	case action.QuickResponse:
		return r.handleQuickResponse(ctx, a, in, resp)
	case action.Rate:
		return r.handleRating(ctx, a, in, resp, logger)
	default:
		return fmt.Errorf("unhandled action kind %q", act.Kind())
	}
}

func (r *Router) handleCreateTicket(ctx context.Context, a action.CreateTicket, in Interaction, resp *trackedResponder, logger *zap.Logger) error {
	if in.GuildID == "" {
		return fmt.Errorf("create ticket outside a guild")
	}
	if err := resp.Defer(ctx); err != nil {
		return err
	}

	category := a.Category
	ticket, err := r.lifecycle.OpenTicket(ctx, service.OpenTicketInput{
		GuildID:      in.GuildID,
		Member:       in.User,
		CategoryName: &category,
	})
	switch {
	case err == nil:
		return resp.EditReply(ctx, fmt.Sprintf(MsgTicketCreated, chat.ChannelMention(ticket.ChannelID)))
	case errorutil.HasCode(err, errorutil.CodeDuplicateOpenTicket):
		channelID := errorutil.DetailString(err, "channel_id")
		if channelID == "" {
			return resp.EditReply(ctx, MsgAlreadyOpenNoLink)
		}
		return resp.EditReply(ctx, fmt.Sprintf(MsgAlreadyOpen, chat.ChannelMention(channelID)))
	default:
		logger.Error("open ticket failed", zap.Error(err))
		return resp.EditReply(ctx, MsgCreateFailed)
	}
}

func (r *Router) handleCloseTicket(ctx context.Context, in Interaction, resp *trackedResponder) error {
	if err := resp.Defer(ctx); err != nil {
		return err
	}

	_, err := r.lifecycle.CloseTicketByChannel(ctx, in.ChannelID, in.User.UserID, "")
	switch {
	case err == nil:
		return resp.EditReply(ctx, MsgClosing)
	case errorutil.HasCode(err, errorutil.CodeNotTicketChannel), errorutil.HasCode(err, errorutil.CodeNotFound):
		return resp.EditReply(ctx, MsgNotTicketChannel)
	case errorutil.HasCode(err, errorutil.CodeAlreadyClosed):
		return resp.EditReply(ctx, MsgAlreadyClosed)
	default:
		return err
	}
}

func (r *Router) handleQuickResponse(ctx context.Context, a action.QuickResponse, in Interaction, resp *trackedResponder) error {
	_, err := r.feedback.RecordQuickResponse(ctx, in.ChannelID, in.User.UserID, a.Helpful)
	switch {
	case err == nil:
		return resp.Reply(ctx, MsgQuickResponseDone)
	case errorutil.HasCode(err, errorutil.CodeNotTicketChannel):
		return resp.Reply(ctx, MsgNotTicketChannel)
	default:
		return err
	}
}

func (r *Router) handleRating(ctx context.Context, a action.Rate, in Interaction, resp *trackedResponder, logger *zap.Logger) error {
	ticketID, ok := action.TicketIDFromFooter(in.MessageFooter)
	if !ok {
		return resp.Reply(ctx, MsgInvalidRating)
	}

	_, err := r.feedback.RecordRating(ctx, ticketID, in.User.UserID, a.Stars)
	switch {
	case err == nil:
	case errorutil.HasCode(err, errorutil.CodeInvalidRating), errorutil.HasCode(err, errorutil.CodeNotFound):
		return resp.Reply(ctx, MsgInvalidRating)
	default:
		if !errorutil.HasCode(err, errorutil.CodeDuplicateRating) {
			logger.Error("save rating failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return resp.Reply(ctx, MsgRatingFailed)
	}

	plural := ""
	if a.Stars > 1 {
		plural = "s"
	}
	if err := resp.Reply(ctx, fmt.Sprintf(MsgRatingDone, a.Stars, plural)); err != nil {
		return err
	}
	if err := resp.DisableComponents(ctx); err != nil {
		logger.Warn("disable rating buttons failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return nil
}

func (r *Router) reply(ctx context.Context, logger *zap.Logger, resp *trackedResponder, content string) {
	if err := resp.Reply(ctx, content); err != nil {
		logger.Warn("acknowledge interaction failed", zap.Error(err))
	}
}

func (r *Router) surfaceFailure(ctx context.Context, logger *zap.Logger, resp *trackedResponder) {
	if err := resp.fail(ctx); err != nil {
		logger.Warn("send failure notice failed", zap.Error(err))
	}
}
