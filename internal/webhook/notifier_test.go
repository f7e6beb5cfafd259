package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

type received struct {
	payload Payload
	header  http.Header
	body    []byte
}

type recorder struct {
	mu   sync.Mutex
	hits []received
}

func (r *recorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var p Payload
		_ = json.Unmarshal(body, &p)
		r.mu.Lock()
		r.hits = append(r.hits, received{payload: p, header: req.Header.Clone(), body: body})
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hits)
}

func newNotifier(t *testing.T, repo repository.WebhookRepository, timeoutSeconds int) (*Notifier, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	n := NewNotifier(repo, config.WebhookConfig{
		TimeoutSeconds: timeoutSeconds,
		MaxConcurrent:  4,
		UserAgent:      "ticket-bot-test",
	}, zap.NewNop(), metrics)
	return n, metrics
}

func addWebhook(t *testing.T, repo repository.WebhookRepository, wh domain.WebhookSubscription) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &wh))
}

func TestTrigger_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	repos := repository.NewMemory().Repos()

	okA, okB := &recorder{}, &recorder{}
	srvA := httptest.NewServer(okA.handler(http.StatusOK))
	defer srvA.Close()
	srvB := httptest.NewServer(okB.handler(http.StatusNoContent))
	defer srvB.Close()

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	events := []string{"ticket_created"}
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "a", URL: srvA.URL, Events: events, Enabled: true})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "slow", URL: slow.URL, Events: events, Enabled: true})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "b", URL: srvB.URL, Events: events, Enabled: true})

	n, metrics := newNotifier(t, repos.Webhooks, 1)

	start := time.Now()
	results := n.Trigger(context.Background(), "g1", "ticket_created", map[string]any{"ticketId": "t1"})
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.Equal(t, 1, okA.count())
	assert.Equal(t, 1, okB.count())
	assert.Less(t, elapsed, 3*time.Second)

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
			assert.Equal(t, "slow", res.Name)
		}
	}
	assert.Equal(t, 1, failed)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Deliveries["ticket_created|success"])
	assert.Equal(t, int64(1), snap.Deliveries["ticket_created|failure"])

	got := okA.hits[0].payload
	assert.Equal(t, "ticket_created", got.Event)
	assert.Equal(t, "g1", got.GuildID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, map[string]any{"ticketId": "t1"}, got.Data)
}

func TestTrigger_OnlyEnabledMatchingSubscriptions(t *testing.T) {
	repos := repository.NewMemory().Repos()
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "match", URL: srv.URL, Events: []string{"ticket_closed"}, Enabled: true})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "disabled", URL: srv.URL, Events: []string{"ticket_closed"}, Enabled: false})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "other-event", URL: srv.URL, Events: []string{"ticket_created"}, Enabled: true})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g2", Name: "other-guild", URL: srv.URL, Events: []string{"ticket_closed"}, Enabled: true})

	n, _ := newNotifier(t, repos.Webhooks, 5)
	results := n.Trigger(context.Background(), "g1", "ticket_closed", nil)

	require.Len(t, results, 1)
	assert.Equal(t, "match", results[0].Name)
	assert.Equal(t, 1, rec.count())
}

func TestTrigger_SecretHeaders(t *testing.T) {
	repos := repository.NewMemory().Repos()
	withSecret, without := &recorder{}, &recorder{}
	srvSecret := httptest.NewServer(withSecret.handler(http.StatusOK))
	defer srvSecret.Close()
	srvPlain := httptest.NewServer(without.handler(http.StatusOK))
	defer srvPlain.Close()

	secret := "s3cr3t"
	events := []string{"ticket_rated"}
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "secret", URL: srvSecret.URL, Secret: &secret, Events: events, Enabled: true})
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "plain", URL: srvPlain.URL, Events: events, Enabled: true})

	n, _ := newNotifier(t, repos.Webhooks, 5)
	n.Trigger(context.Background(), "g1", "ticket_rated", map[string]int{"stars": 5})

	require.Equal(t, 1, withSecret.count())
	hit := withSecret.hits[0]
	assert.Equal(t, secret, hit.header.Get(HeaderSecret))
	assert.Equal(t, Sign(secret, hit.body), hit.header.Get(HeaderSignature))
	assert.Equal(t, "application/json", hit.header.Get("Content-Type"))
	assert.Equal(t, "ticket-bot-test", hit.header.Get("User-Agent"))

	require.Equal(t, 1, without.count())
	assert.Empty(t, without.hits[0].header.Get(HeaderSecret))
	assert.Empty(t, without.hits[0].header.Get(HeaderSignature))
}

func TestTrigger_NonSuccessStatusIsFailure(t *testing.T) {
	repos := repository.NewMemory().Repos()
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()
	addWebhook(t, repos.Webhooks, domain.WebhookSubscription{GuildID: "g1", Name: "broken", URL: srv.URL, Events: []string{"ticket_created"}, Enabled: true})

	n, _ := newNotifier(t, repos.Webhooks, 5)
	results := n.Trigger(context.Background(), "g1", "ticket_created", nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Equal(t, http.StatusInternalServerError, results[0].StatusCode)
}

type failingWebhooks struct{ repository.WebhookRepository }

func (failingWebhooks) ListEnabledForEvent(context.Context, string, string) ([]domain.WebhookSubscription, error) {
	return nil, errors.New("db down")
}

func TestTrigger_StoreFailureIsSwallowed(t *testing.T) {
	n, _ := newNotifier(t, failingWebhooks{}, 5)
	assert.NotPanics(t, func() {
		assert.Nil(t, n.Trigger(context.Background(), "g1", "ticket_created", nil))
	})
}

func TestSign_DependsOnSecretAndBody(t *testing.T) {
	body := []byte(`{"event":"ticket_created"}`)
	assert.Len(t, Sign("a", body), 64)
	assert.Equal(t, Sign("a", body), Sign("a", body))
	assert.NotEqual(t, Sign("a", body), Sign("b", body))
	assert.NotEqual(t, Sign("a", body), Sign("a", []byte("{}")))
}
