package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/action"
	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	defaultWelcomeTitle = "🎫 Ticket Created"
	defaultWelcomeDesc  = "Welcome %s! Support will be with you shortly.\n\nPlease describe your issue in detail."
	defaultCloseReason  = "Ticket closed"
)

// TranscriptCapturer archives a ticket channel's history.
type TranscriptCapturer interface {
	Capture(ctx context.Context, ticket *domain.Ticket) (string, error)
}

// DeletionScheduler defers channel deletion.
type DeletionScheduler interface {
	Schedule(key string, delay time.Duration, task scheduler.Task) bool
}

// TicketService is the lifecycle controller: it owns ticket status
// transitions and the side effects that follow them.
type TicketService struct {
	tickets     repository.TicketRepository
	feedback    repository.FeedbackRepository
	guilds      repository.GuildRepository
	sequence    repository.TicketSequence
	audit       *AuditService
	platform    chat.Platform
	dispatcher  events.Dispatcher
	transcripts TranscriptCapturer
	deletions   DeletionScheduler
	background  *Background
	cfg         config.LifecycleConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	FeedbackRepo repository.FeedbackRepository
	GuildRepo    repository.GuildRepository
	Sequence     repository.TicketSequence
	Audit        *AuditService
	Platform     chat.Platform
	Dispatcher   events.Dispatcher
	Transcripts  TranscriptCapturer
	Deletions    DeletionScheduler
	Background   *Background
	Config       config.LifecycleConfig
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// OpenTicketInput describes a ticket creation request.
type OpenTicketInput struct {
	GuildID      string
	Member       chat.Member
	CategoryName *string
}

// TicketDetail is a ticket with its feedback and audit trail.
type TicketDetail struct {
	Ticket         *domain.Ticket
	QuickResponses []domain.QuickResponse
	Rating         *domain.Rating
	Logs           []domain.LogEntry
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	background := deps.Background
	if background == nil {
		background = NewBackground(deps.Config.SideTaskTimeout(), logger)
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		feedback:    deps.FeedbackRepo,
		guilds:      deps.GuildRepo,
		sequence:    deps.Sequence,
		audit:       deps.Audit,
		platform:    deps.Platform,
		dispatcher:  deps.Dispatcher,
		transcripts: deps.Transcripts,
		deletions:   deps.Deletions,
		background:  background,
		cfg:         deps.Config,
		logger:      logger,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// OpenTicket provisions a private channel and records an OPEN ticket for
// the member. A member who already has an OPEN ticket in the guild gets a
// DUPLICATE_OPEN_TICKET error carrying that ticket's channel.
func (s *TicketService) OpenTicket(ctx context.Context, input OpenTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.GuildID) == "" || strings.TrimSpace(input.Member.UserID) == "" {
		return nil, errorutil.NewValidationError("guild and user are required", nil)
	}
	logger := s.logger.With(zap.String("guild_id", input.GuildID), zap.String("user_id", input.Member.UserID))

	guildCfg, err := s.guildConfig(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	existing, err := s.tickets.FindOpenByUser(ctx, input.GuildID, input.Member.UserID)
	switch {
	case err == nil:
		return nil, errorutil.NewDuplicateOpenTicket(existing.ID, existing.ChannelID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	number, err := s.sequence.Next(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	chatCtx, cancel := s.chatContext(ctx)
	channel, err := s.platform.CreateChannel(chatCtx, s.channelSpec(guildCfg, input, number))
	cancel()
	if err != nil {
		logger.Error("provision ticket channel failed", zap.Error(err))
		return nil, errorutil.NewProvisioningFailure(err)
	}

	ticket := &domain.Ticket{
		GuildID:      input.GuildID,
		ChannelID:    channel.ID,
		UserID:       input.Member.UserID,
		Number:       number,
		CategoryName: input.CategoryName,
		Status:       domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrOpenTicketExists) {
			return nil, s.resolveCreateRace(ctx, logger, input, channel.ID)
		}
		logger.Error("persist ticket failed; channel left orphaned",
			zap.String("channel_id", channel.ID), zap.Error(err))
		return nil, err
	}
	logger = logger.With(zap.String("ticket_id", ticket.ID))

	s.audit.Record(ctx, domain.LogEntry{
		GuildID:  ticket.GuildID,
		Action:   domain.LogActionTicketCreated,
		Details:  strPtr(fmt.Sprintf("Ticket %s created by %s", channel.Name, input.Member.Name())),
		UserID:   strPtr(ticket.UserID),
		TicketID: strPtr(ticket.ID),
	})
	s.metrics.RecordTransition(string(domain.LogActionTicketCreated))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  ticket.UserID,
		Payload: events.TicketCreatedPayload{
			TicketID:     ticket.ID,
			ChannelID:    ticket.ChannelID,
			UserID:       ticket.UserID,
			Number:       ticket.Number,
			CategoryName: ticket.CategoryName,
		},
	})

	if err := s.sendWelcome(ctx, guildCfg, ticket, input.Member); err != nil {
		logger.Warn("send welcome message failed", zap.Error(err))
	}

	logger.Info("ticket opened", zap.String("channel_id", ticket.ChannelID), zap.Int("number", ticket.Number))
	return ticket, nil
}

// resolveCreateRace handles a concurrent open that won the store's
// uniqueness check: the channel provisioned for the loser is removed and the
// caller is pointed at the winner's channel.
func (s *TicketService) resolveCreateRace(ctx context.Context, logger *zap.Logger, input OpenTicketInput, channelID string) error {
	chatCtx, cancel := s.chatContext(ctx)
	if err := s.platform.DeleteChannel(chatCtx, channelID); err != nil {
		logger.Warn("delete duplicate ticket channel failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	cancel()

	winner, err := s.tickets.FindOpenByUser(ctx, input.GuildID, input.Member.UserID)
	if err != nil {
		logger.Warn("lookup winning ticket failed", zap.Error(err))
		return errorutil.NewDuplicateOpenTicket("", "")
	}
	return errorutil.NewDuplicateOpenTicket(winner.ID, winner.ChannelID)
}

// CloseTicket moves an OPEN ticket to CLOSED. A second close of the same
// ticket fails with ALREADY_CLOSED and has no side effects.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID, closedBy, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.CloseOpen(ctx, ticketID, closedBy, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrTicketNotOpen) {
			return nil, err
		}
		if _, getErr := s.tickets.GetByID(ctx, ticketID); errors.Is(getErr, repository.ErrNotFound) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, errorutil.NewAlreadyClosed(ticketID)
	}

	details := reason
	if details == "" {
		details = defaultCloseReason
	}
	s.audit.Record(ctx, domain.LogEntry{
		GuildID:  ticket.GuildID,
		Action:   domain.LogActionTicketClosed,
		Details:  &details,
		UserID:   strPtr(closedBy),
		TicketID: strPtr(ticket.ID),
	})
	s.metrics.RecordTransition(string(domain.LogActionTicketClosed))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketClosed,
		GuildID:  ticket.GuildID,
		TicketID: ticket.ID,
		ActorID:  closedBy,
		Payload: events.TicketClosedPayload{
			TicketID: ticket.ID,
			ClosedBy: closedBy,
			Reason:   reason,
		},
	})

	guildCfg, err := s.guildConfig(ctx, ticket.GuildID)
	if err != nil {
		s.logger.Warn("load guild config failed; skipping optional close tasks",
			zap.String("guild_id", ticket.GuildID), zap.Error(err))
		guildCfg = domain.DefaultGuildConfig(ticket.GuildID)
	}
	s.startCloseSideTasks(ticket, guildCfg)

	s.logger.Info("ticket closed",
		zap.String("guild_id", ticket.GuildID),
		zap.String("ticket_id", ticket.ID),
		zap.String("closed_by", closedBy))
	return ticket, nil
}

// CloseTicketByChannel closes the ticket bound to channelID.
func (s *TicketService) CloseTicketByChannel(ctx context.Context, channelID, closedBy, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewNotTicketChannel(channelID)
		}
		return nil, err
	}
	if !ticket.IsOpen() {
		return nil, errorutil.NewAlreadyClosed(ticket.ID)
	}
	return s.CloseTicket(ctx, ticket.ID, closedBy, reason)
}

// startCloseSideTasks runs the best-effort work that follows a close. The
// transcript is captured before the channel deletion is scheduled; the
// rating request runs alongside.
func (s *TicketService) startCloseSideTasks(ticket *domain.Ticket, guildCfg *domain.GuildConfig) {
	fields := []zap.Field{zap.String("ticket_id", ticket.ID), zap.String("guild_id", ticket.GuildID)}

	s.background.Go("close-teardown", func(ctx context.Context) error {
		if guildCfg.EnableTranscripts && s.transcripts != nil {
			location, err := s.transcripts.Capture(ctx, ticket)
			if err != nil {
				s.logger.Warn("transcript capture failed", append(fields, zap.Error(err))...)
			} else {
				s.logger.Info("transcript captured", append(fields, zap.String("location", location))...)
			}
		}
		s.scheduleChannelDeletion(ticket)
		return nil
	}, fields...)

	if guildCfg.EnableRating {
		s.background.Go("rating-request", func(ctx context.Context) error {
			return s.sendRatingRequest(ctx, ticket)
		}, fields...)
	}
}

func (s *TicketService) scheduleChannelDeletion(ticket *domain.Ticket) {
	if s.deletions == nil {
		return
	}
	channelID := ticket.ChannelID
	scheduled := s.deletions.Schedule(ticket.ID, s.cfg.ChannelDeleteDelay(), func(ctx context.Context) {
		chatCtx, cancel := s.chatContext(ctx)
		defer cancel()
		if err := s.platform.DeleteChannel(chatCtx, channelID); err != nil {
			s.logger.Warn("delete ticket channel failed",
				zap.String("ticket_id", ticket.ID), zap.String("channel_id", channelID), zap.Error(err))
			return
		}
		s.logger.Info("ticket channel deleted", zap.String("ticket_id", ticket.ID), zap.String("channel_id", channelID))
	})
	if !scheduled {
		s.logger.Info("channel deletion not scheduled; shutting down", zap.String("ticket_id", ticket.ID))
	}
}

func (s *TicketService) sendRatingRequest(ctx context.Context, ticket *domain.Ticket) error {
	buttons := make([]chat.Button, 0, domain.MaxRatingStars)
	for stars := domain.MinRatingStars; stars <= domain.MaxRatingStars; stars++ {
		buttons = append(buttons, chat.Button{
			CustomID: action.RatingID(stars),
			Label:    strconv.Itoa(stars) + " ⭐",
			Style:    chat.ButtonSecondary,
		})
	}
	msg := chat.OutgoingMessage{
		Embed: &chat.Embed{
			Title:       "Rate Your Support Experience",
			Description: "How would you rate the support you received?",
			Color:       chat.ColorGold,
			Footer:      action.RatingFooter(ticket.ID),
			Timestamp:   s.now(),
		},
		Buttons: buttons,
	}

	chatCtx, cancel := s.chatContext(ctx)
	defer cancel()
	if _, err := s.platform.SendDirectMessage(chatCtx, ticket.UserID, msg); err != nil {
		return fmt.Errorf("send rating request: %w", err)
	}
	s.logger.Info("rating request sent", zap.String("ticket_id", ticket.ID), zap.String("user_id", ticket.UserID))
	return nil
}

func (s *TicketService) sendWelcome(ctx context.Context, guildCfg *domain.GuildConfig, ticket *domain.Ticket, member chat.Member) error {
	tmpl, err := s.guilds.GetMessage(ctx, ticket.GuildID, domain.MessageKeyTicketCreated)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("load welcome template failed", zap.String("guild_id", ticket.GuildID), zap.Error(err))
	}

	embed := &chat.Embed{
		Title:       defaultWelcomeTitle,
		Description: fmt.Sprintf(defaultWelcomeDesc, userMention(member.UserID)),
		Color:       chat.ColorBlurple,
		Timestamp:   s.now(),
	}
	msg := chat.OutgoingMessage{Embed: embed}
	if tmpl != nil {
		msg.Content = tmpl.Content
		if tmpl.EmbedTitle != nil && *tmpl.EmbedTitle != "" {
			embed.Title = *tmpl.EmbedTitle
		}
		if tmpl.EmbedDesc != nil && *tmpl.EmbedDesc != "" {
			embed.Description = *tmpl.EmbedDesc
		}
		if tmpl.EmbedColor != nil {
			if color, ok := parseColor(*tmpl.EmbedColor); ok {
				embed.Color = color
			}
		}
	}

	msg.Buttons = []chat.Button{{CustomID: action.CloseTicketID(), Label: "🔒 Close Ticket", Style: chat.ButtonDanger}}
	if guildCfg.EnableQuickResponses {
		msg.Buttons = append(msg.Buttons,
			chat.Button{CustomID: action.QuickResponseID(true), Label: "👍 Helpful", Style: chat.ButtonSuccess},
			chat.Button{CustomID: action.QuickResponseID(false), Label: "👎 Not Helpful", Style: chat.ButtonSecondary},
		)
	}

	chatCtx, cancel := s.chatContext(ctx)
	defer cancel()
	_, err = s.platform.SendMessage(chatCtx, ticket.ChannelID, msg)
	return err
}

func (s *TicketService) channelSpec(guildCfg *domain.GuildConfig, input OpenTicketInput, number int) chat.ChannelSpec {
	member := chat.PermissionView | chat.PermissionSend | chat.PermissionReadHistory
	overwrites := []chat.PermissionOverwrite{
		// The @everyone role shares the guild's id.
		{TargetID: input.GuildID, Kind: chat.OverwriteRole, Deny: chat.PermissionView},
		{TargetID: input.Member.UserID, Kind: chat.OverwriteMember, Allow: member},
	}
	if guildCfg.SupportRoleID != nil && *guildCfg.SupportRoleID != "" {
		overwrites = append(overwrites, chat.PermissionOverwrite{
			TargetID: *guildCfg.SupportRoleID,
			Kind:     chat.OverwriteRole,
			Allow:    member,
		})
	}

	spec := chat.ChannelSpec{
		GuildID:    input.GuildID,
		Name:       fmt.Sprintf("ticket-%d", number),
		Overwrites: overwrites,
	}
	if guildCfg.TicketCategoryID != nil {
		spec.ParentID = *guildCfg.TicketCategoryID
	}
	if input.CategoryName != nil && *input.CategoryName != "" {
		spec.Topic = fmt.Sprintf("%s ticket for %s", *input.CategoryName, input.Member.Name())
	}
	return spec
}

func (s *TicketService) guildConfig(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	cfg, err := s.guilds.GetConfig(ctx, guildID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DefaultGuildConfig(guildID), nil
	}
	return cfg, err
}

func (s *TicketService) chatContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.cfg.ChatTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// GetTicket returns a ticket of guildID with its feedback and audit trail.
func (s *TicketService) GetTicket(ctx context.Context, guildID, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && ticket.GuildID != guildID) {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, err
	}

	detail := &TicketDetail{Ticket: ticket}
	if detail.QuickResponses, err = s.feedback.ListQuickResponses(ctx, ticket.ID); err != nil {
		return nil, err
	}
	rating, err := s.feedback.GetRatingByTicket(ctx, ticket.ID)
	switch {
	case err == nil:
		detail.Rating = rating
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	if detail.Logs, err = s.audit.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, errorutil.NewValidationError("invalid status", map[string]any{"status": *filter.Status})
	}
	return s.tickets.ListWithFilter(ctx, filter)
}

// Stats returns ticket counters of a guild.
func (s *TicketService) Stats(ctx context.Context, guildID string) (domain.TicketStats, error) {
	return s.tickets.Stats(ctx, guildID)
}

// WaitForSideTasks blocks until background side tasks have finished.
func (s *TicketService) WaitForSideTasks() {
	s.background.Wait()
}

func userMention(userID string) string {
	return "<@" + userID + ">"
}

func parseColor(raw string) (int, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if hex == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(hex, 16, 32)
	if err != nil || value < 0 || value > 0xFFFFFF {
		return 0, false
	}
	return int(value), true
}
