//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) (string, func(port string) string) {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	return host, func(port string) string {
		mapped, err := container.MappedPort(ctx, port)
		require.NoError(t, err)
		return mapped.Port()
	}
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image: "postgres:15",
		Env: map[string]string{
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_USER":     "test",
			"POSTGRES_DB":       "ticketbot",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	ctx := context.Background()
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/ticketbot?sslmode=disable", host, port("5432"))
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.Eventually(t, func() bool { return pool.Ping(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))
	return pool
}

func TestPostgres_OneOpenTicketUnderConcurrency(t *testing.T) {
	pool := setupPostgres(t)
	repos := NewPostgresRepos(pool)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repos.Tickets.Create(ctx, &domain.Ticket{
				GuildID:   "g1",
				UserID:    "u1",
				ChannelID: fmt.Sprintf("chan-%d", i),
				Number:    i + 1,
				Status:    domain.TicketStatusOpen,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range results {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrOpenTicketExists)
	}
	assert.Equal(t, 1, created)

	open, err := repos.Tickets.FindOpenByUser(ctx, "g1", "u1")
	require.NoError(t, err)

	closed, err := repos.Tickets.CloseOpen(ctx, open.ID, "staff", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	_, err = repos.Tickets.CloseOpen(ctx, open.ID, "staff", time.Now())
	assert.ErrorIs(t, err, ErrTicketNotOpen)

	require.NoError(t, repos.Feedback.CreateRating(ctx, &domain.Rating{TicketID: open.ID, UserID: "u1", Stars: 5}))
	err = repos.Feedback.CreateRating(ctx, &domain.Rating{TicketID: open.ID, UserID: "u1", Stars: 3})
	assert.ErrorIs(t, err, ErrRatingExists)

	_, err = repos.Guilds.GetConfig(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisSequence_SeededFromCount(t *testing.T) {
	pool := setupPostgres(t)
	repos := NewPostgresRepos(pool)
	ctx := context.Background()
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{GuildID: "g1", UserID: "u1", ChannelID: "c1", Number: 1, Status: domain.TicketStatusClosed}))

	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port("6379")})
	t.Cleanup(func() { _ = client.Close() })

	seq := NewTicketSequence(client, "it:", repos.Tickets, zap.NewNop())
	first, err := seq.Next(ctx, "g1")
	require.NoError(t, err)
	second, err := seq.Next(ctx, "g1")
	require.NoError(t, err)

	assert.Equal(t, 2, first)
	assert.Equal(t, 3, second)
}

func TestPostgres_MalformedTicketIDIsNotFound(t *testing.T) {
	pool := setupPostgres(t)
	repos := NewPostgresRepos(pool)
	ctx := context.Background()

	for _, id := range []string{"abc", "", "Ticket ID: 1"} {
		_, err := repos.Tickets.GetByID(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)

		_, err = repos.Tickets.CloseOpen(ctx, id, "staff", time.Now())
		assert.ErrorIs(t, err, ErrTicketNotOpen, id)

		_, err = repos.Feedback.GetRatingByTicket(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)

		responses, err := repos.Feedback.ListQuickResponses(ctx, id)
		require.NoError(t, err, id)
		assert.Empty(t, responses)

		entries, err := repos.Logs.ListByTicket(ctx, id)
		require.NoError(t, err, id)
		assert.Empty(t, entries)
	}
}
