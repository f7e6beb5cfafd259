package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testAPI struct {
	app      *fiber.App
	repos    *repository.Repos
	tickets  *service.TicketService
	feedback *service.FeedbackService
	metrics  *observability.Metrics
}

func newTestAPI(t *testing.T, deps ...handlers.Dependency) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	repos := repository.NewMemory().Repos()
	audit := service.NewAuditService(repos.Logs, logger)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		GuildRepo:    repos.Guilds,
		Sequence:     repository.NewTicketSequence(nil, "", repos.Tickets, logger),
		Audit:        audit,
		Platform:     chat.NewFake(),
		Logger:       logger,
	})
	feedback := service.NewFeedbackService(service.FeedbackDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		Audit:        audit,
		Logger:       logger,
	})
	notifications := service.NewNotificationService(nil, nil, repos.Webhooks, logger)

	app := NewApp(config.AppConfig{Name: "test", CORSOrigins: "*", RequestTimeoutSeconds: 5}, logger, metrics)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("ticket-bot", "test", metrics, deps...),
		Tickets: handlers.NewTicketsHandler(tickets),
		Guilds:  handlers.NewGuildHandler(audit, notifications),
	})
	return &testAPI{app: app, repos: repos, tickets: tickets, feedback: feedback, metrics: metrics}
}

func (a *testAPI) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := a.app.Test(httptest.NewRequest(fiber.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func (a *testAPI) open(t *testing.T, guildID, userID string) *domain.Ticket {
	t.Helper()
	ticket, err := a.tickets.OpenTicket(context.Background(), service.OpenTicketInput{
		GuildID: guildID,
		Member:  chat.Member{UserID: userID, Username: userID},
	})
	require.NoError(t, err)
	return ticket
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t,
		handlers.Dependency{Name: "postgres", Pinger: pingFunc(func(context.Context) error { return nil })},
		handlers.Dependency{Name: "redis", Pinger: pingFunc(func(context.Context) error { return persistence.ErrNotConfigured })},
	)

	status, body := api.get(t, "/health/live")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = api.get(t, "/health/ready")
	assert.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestHealth_ReadyFailsWhenBackendDown(t *testing.T) {
	api := newTestAPI(t,
		handlers.Dependency{Name: "postgres", Pinger: pingFunc(func(context.Context) error { return errors.New("connection refused") })},
	)

	status, body := api.get(t, "/health/ready")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errBody["code"])
}

func TestListTickets(t *testing.T) {
	api := newTestAPI(t)
	first := api.open(t, "g1", "u1")
	api.open(t, "g1", "u2")
	api.open(t, "g2", "u3")
	_, err := api.tickets.CloseTicket(context.Background(), first.ID, "staff", "")
	require.NoError(t, err)
	api.tickets.WaitForSideTasks()

	status, body := api.get(t, "/api/guilds/g1/tickets")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = api.get(t, "/api/guilds/g1/tickets?status=CLOSED")
	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, first.ID, data[0].(map[string]any)["id"])

	status, body = api.get(t, "/api/guilds/g1/tickets?status=PENDING")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestGetTicket(t *testing.T) {
	api := newTestAPI(t)
	ticket := api.open(t, "g1", "u1")
	_, err := api.feedback.RecordQuickResponse(context.Background(), ticket.ChannelID, "u1", true)
	require.NoError(t, err)

	status, body := api.get(t, "/api/guilds/g1/tickets/"+ticket.ID)
	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "OPEN", data["status"])
	assert.Len(t, data["quick_responses"], 1)
	assert.Nil(t, data["rating"])
	assert.Len(t, data["logs"], 2)

	status, body = api.get(t, "/api/guilds/other/tickets/"+ticket.ID)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestStatsAndLogs(t *testing.T) {
	api := newTestAPI(t)
	ticket := api.open(t, "g1", "u1")
	_, err := api.tickets.CloseTicket(context.Background(), ticket.ID, "staff", "done")
	require.NoError(t, err)
	api.tickets.WaitForSideTasks()
	_, err = api.feedback.RecordRating(context.Background(), ticket.ID, "u1", 4)
	require.NoError(t, err)

	status, body := api.get(t, "/api/guilds/g1/stats")
	assert.Equal(t, fiber.StatusOK, status)
	stats := body["data"].(map[string]any)
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 1, stats["closed"])
	assert.EqualValues(t, 4, stats["average_rating"])

	status, body = api.get(t, "/api/guilds/g1/logs?limit=2")
	assert.Equal(t, fiber.StatusOK, status)
	logs := body["data"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "ticket_rated", logs[0].(map[string]any)["action"])
}

func TestWebhooksNeverExposeSecret(t *testing.T) {
	api := newTestAPI(t)
	secret := "s3cr3t"
	require.NoError(t, api.repos.Webhooks.Create(context.Background(), &domain.WebhookSubscription{
		GuildID: "g1", Name: "crm", URL: "https://crm.example/hook", Secret: &secret,
		Events: []string{"ticket_closed"}, Enabled: true,
	}))

	status, body := api.get(t, "/api/guilds/g1/webhooks")
	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	hook := data[0].(map[string]any)
	assert.Equal(t, true, hook["has_secret"])
	assert.NotContains(t, hook, "secret")
}

func TestMetricsAndUnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.get(t, "/nope")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := api.get(t, "/metrics")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "requests")
	assert.NotEmpty(t, api.metrics.Snapshot().Errors)
}
