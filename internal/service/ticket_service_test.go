package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/action"
	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/repository/mock"
	"github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func TestOpenTicket_Success(t *testing.T) {
	h := newHarness()
	support := "role-support"
	parent := "cat-1"
	h.mem.PutGuildConfig(domain.GuildConfig{GuildID: "g1", SupportRoleID: &support, TicketCategoryID: &parent, EnableQuickResponses: true})

	ticket, err := h.tickets.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1"), CategoryName: category("billing")})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, 1, ticket.Number)
	assert.NotEmpty(t, ticket.ID)

	spec, ok := h.platform.Channels[ticket.ChannelID]
	require.True(t, ok)
	assert.Equal(t, "ticket-1", spec.Name)
	assert.Equal(t, "cat-1", spec.ParentID)
	require.Len(t, spec.Overwrites, 3)
	assert.Equal(t, chat.PermissionOverwrite{TargetID: "g1", Kind: chat.OverwriteRole, Deny: chat.PermissionView}, spec.Overwrites[0])
	assert.Equal(t, "u1", spec.Overwrites[1].TargetID)
	assert.True(t, spec.Overwrites[1].Allow.Has(chat.PermissionView|chat.PermissionSend|chat.PermissionReadHistory))
	assert.Equal(t, "role-support", spec.Overwrites[2].TargetID)

	sent, _, _ := h.platform.Snapshot()
	require.Len(t, sent, 1)
	welcome := sent[0].Message
	require.NotNil(t, welcome.Embed)
	assert.Equal(t, defaultWelcomeTitle, welcome.Embed.Title)
	assert.Contains(t, welcome.Embed.Description, "<@u1>")
	require.Len(t, welcome.Buttons, 3)
	assert.Equal(t, action.CloseTicketID(), welcome.Buttons[0].CustomID)
	assert.Equal(t, "quick_response_helpful", welcome.Buttons[1].CustomID)
	assert.Equal(t, "quick_response_not_helpful", welcome.Buttons[2].CustomID)

	created := h.events.ofType(events.EventTicketCreated)
	require.Len(t, created, 1)
	payload, ok := created[0].Payload.(events.TicketCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, ticket.ChannelID, payload.ChannelID)
	assert.Equal(t, "g1", created[0].GuildID)

	assert.Len(t, h.logs("g1", domain.LogActionTicketCreated), 1)
}

func TestOpenTicket_DefaultConfigAndCustomTemplate(t *testing.T) {
	h := newHarness()
	title, desc, color := "Hello", "Custom welcome", "#00ff00"
	h.mem.PutGuildMessage(domain.GuildMessage{GuildID: "g1", Key: domain.MessageKeyTicketCreated, Content: "hi", EmbedTitle: &title, EmbedDesc: &desc, EmbedColor: &color})

	_, err := h.tickets.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)

	sent, _, _ := h.platform.Snapshot()
	require.Len(t, sent, 1)
	msg := sent[0].Message
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "Hello", msg.Embed.Title)
	assert.Equal(t, "Custom welcome", msg.Embed.Description)
	assert.Equal(t, 0x00ff00, msg.Embed.Color)
	require.Len(t, msg.Buttons, 1)
}

func TestOpenTicket_ExistingOpenTicketRedirects(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1"), CategoryName: category("general")})
	require.NoError(t, err)

	_, err = h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1"), CategoryName: category("billing")})
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeDuplicateOpenTicket))
	assert.Equal(t, first.ChannelID, errorutil.DetailString(err, "channel_id"))

	count, err := h.repos.Tickets.CountByGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, h.platform.ChannelCount())
	assert.Len(t, h.events.ofType(events.EventTicketCreated), 1)
}

func TestOpenTicket_OtherGuildOrUserIsIndependent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	_, err = h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g2", Member: member("u1")})
	require.NoError(t, err)
	_, err = h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u2")})
	require.NoError(t, err)
}

func TestOpenTicket_ConcurrentRequestsLeaveOneOpenTicket(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errorutil.HasCode(err, errorutil.CodeDuplicateOpenTicket):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)

	open := domain.TicketStatusOpen
	tickets, err := h.repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{GuildID: "g1", Status: &open})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, 1, h.platform.ChannelCount())
	assert.Len(t, h.events.ofType(events.EventTicketCreated), 1)
}

func TestOpenTicket_ProvisioningFailure(t *testing.T) {
	h := newHarness()
	h.platform.CreateErr = errors.New("missing permissions")

	_, err := h.tickets.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeProvisioningFailed))

	count, err := h.repos.Tickets.CountByGuild(context.Background(), "g1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.logs("g1", domain.LogActionTicketCreated))
	assert.Empty(t, h.events.ofType(events.EventTicketCreated))
}

func TestOpenTicket_WelcomeFailureDoesNotFailOpen(t *testing.T) {
	h := newHarness()
	h.platform.SendErr = errors.New("rate limited")

	ticket, err := h.tickets.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	assert.True(t, ticket.IsOpen())
}

func TestOpenTicket_Validation(t *testing.T) {
	h := newHarness()
	_, err := h.tickets.OpenTicket(context.Background(), OpenTicketInput{GuildID: "", Member: member("u1")})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))
}

func TestOpenTicket_GuildConfigErrorStopsBeforeProvisioning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	guilds := mock.NewMockGuildRepository(ctrl)
	tickets := mock.NewMockTicketRepository(ctrl)
	guilds.EXPECT().GetConfig(gomock.Any(), "g1").Return(nil, errors.New("db down"))

	platform := chat.NewFake()
	svc := NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		GuildRepo:  guilds,
		Platform:   platform,
		Logger:     zap.NewNop(),
	})

	_, err := svc.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1")})
	assert.EqualError(t, err, "db down")
	assert.Zero(t, platform.ChannelCount())
}

func TestOpenTicket_StoreRejectsRaceLoser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	guilds := mock.NewMockGuildRepository(ctrl)
	tickets := mock.NewMockTicketRepository(ctrl)
	logs := mock.NewMockLogRepository(ctrl)
	winner := &domain.Ticket{ID: "t-winner", ChannelID: "chan-winner", GuildID: "g1", UserID: "u1", Status: domain.TicketStatusOpen}

	guilds.EXPECT().GetConfig(gomock.Any(), "g1").Return(nil, repository.ErrNotFound)
	gomock.InOrder(
		tickets.EXPECT().FindOpenByUser(gomock.Any(), "g1", "u1").Return(nil, repository.ErrNotFound),
		tickets.EXPECT().CountByGuild(gomock.Any(), "g1").Return(3, nil),
		tickets.EXPECT().Create(gomock.Any(), gomock.Any()).Return(repository.ErrOpenTicketExists),
		tickets.EXPECT().FindOpenByUser(gomock.Any(), "g1", "u1").Return(winner, nil),
	)

	platform := chat.NewFake()
	svc := NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		GuildRepo:  guilds,
		Sequence:   repository.NewTicketSequence(nil, "", tickets, nil),
		Audit:      NewAuditService(logs, zap.NewNop()),
		Platform:   platform,
		Logger:     zap.NewNop(),
	})

	_, err := svc.OpenTicket(context.Background(), OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeDuplicateOpenTicket))
	assert.Equal(t, "chan-winner", errorutil.DetailString(err, "channel_id"))

	_, _, deleted := platform.Snapshot()
	assert.Len(t, deleted, 1)
	assert.Zero(t, platform.ChannelCount())
}

func TestCloseTicket_Twice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)

	closed, err := h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "resolved")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "staff-1", *closed.ClosedBy)
	assert.NotNil(t, closed.ClosedAt)

	_, err = h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "")
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAlreadyClosed))

	h.tickets.WaitForSideTasks()
	assert.Len(t, h.events.ofType(events.EventTicketClosed), 1)
	entries := h.logs("g1", domain.LogActionTicketClosed)
	require.Len(t, entries, 1)
	assert.Equal(t, "resolved", *entries[0].Details)
	assert.Len(t, h.deletions.scheduled(), 1)
}

func TestCloseTicket_ConcurrentClosesTransitionOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "")
		}()
	}
	wg.Wait()
	h.tickets.WaitForSideTasks()

	assert.Len(t, h.events.ofType(events.EventTicketClosed), 1)
	assert.Len(t, h.logs("g1", domain.LogActionTicketClosed), 1)
}

func TestCloseTicket_NotFound(t *testing.T) {
	h := newHarness()
	_, err := h.tickets.CloseTicket(context.Background(), "missing", "staff-1", "")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))
	assert.Empty(t, h.events.ofType(events.EventTicketClosed))
}

func TestCloseTicketByChannel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.tickets.CloseTicketByChannel(ctx, "random-channel", "u1", "")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotTicketChannel))

	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)

	closed, err := h.tickets.CloseTicketByChannel(ctx, ticket.ChannelID, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, closed.ID)

	_, err = h.tickets.CloseTicketByChannel(ctx, ticket.ChannelID, "u1", "")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeAlreadyClosed))
	h.tickets.WaitForSideTasks()
}

func TestCloseTicket_SideTasks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.mem.PutGuildConfig(domain.GuildConfig{GuildID: "g1", EnableTranscripts: true, EnableRating: true})

	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	_, err = h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "")
	require.NoError(t, err)
	h.tickets.WaitForSideTasks()

	assert.Equal(t, []string{ticket.ID}, h.transcripts.captured)
	assert.Equal(t, []string{"transcript", "schedule-deletion"}, *h.transcripts.order)

	_, dms, _ := h.platform.Snapshot()
	require.Len(t, dms, 1)
	assert.Equal(t, "u1", dms[0].UserID)
	prompt := dms[0].Message
	require.NotNil(t, prompt.Embed)
	assert.Equal(t, "Rate Your Support Experience", prompt.Embed.Title)
	assert.Equal(t, "Ticket ID: "+ticket.ID, prompt.Embed.Footer)
	require.Len(t, prompt.Buttons, 5)
	assert.Equal(t, "rating_1", prompt.Buttons[0].CustomID)
	assert.Equal(t, "rating_5", prompt.Buttons[4].CustomID)

	scheduled := h.deletions.scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, ticket.ID, scheduled[0].key)
	assert.Equal(t, 5*time.Second, scheduled[0].delay)

	scheduled[0].task(ctx)
	_, _, deleted := h.platform.Snapshot()
	assert.Equal(t, []string{ticket.ChannelID}, deleted)
}

func TestCloseTicket_SideTaskFailuresAreContained(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.mem.PutGuildConfig(domain.GuildConfig{GuildID: "g1", EnableTranscripts: true, EnableRating: true})
	h.transcripts.err = errors.New("history unavailable")
	h.platform.DMErr = errors.New("user blocks DMs")

	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	closed, err := h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	h.tickets.WaitForSideTasks()
	assert.Len(t, h.deletions.scheduled(), 1)
}

func TestCloseTicket_FeaturesDisabled(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	_, err = h.tickets.CloseTicket(ctx, ticket.ID, "staff-1", "")
	require.NoError(t, err)
	h.tickets.WaitForSideTasks()

	assert.Empty(t, h.transcripts.captured)
	_, dms, _ := h.platform.Snapshot()
	assert.Empty(t, dms)
	assert.Len(t, h.deletions.scheduled(), 1)
}

func TestGetTicket(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket, err := h.tickets.OpenTicket(ctx, OpenTicketInput{GuildID: "g1", Member: member("u1")})
	require.NoError(t, err)
	_, err = h.feedback.RecordQuickResponse(ctx, ticket.ChannelID, "u1", true)
	require.NoError(t, err)

	detail, err := h.tickets.GetTicket(ctx, "g1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, detail.Ticket.ID)
	assert.Len(t, detail.QuickResponses, 1)
	assert.Nil(t, detail.Rating)
	assert.Len(t, detail.Logs, 2)

	_, err = h.tickets.GetTicket(ctx, "other-guild", ticket.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))
}

func TestParseColor(t *testing.T) {
	c, ok := parseColor("#5865f2")
	assert.True(t, ok)
	assert.Equal(t, 0x5865f2, c)

	_, ok = parseColor("blue")
	assert.False(t, ok)
	_, ok = parseColor("")
	assert.False(t, ok)
}
