// Package webhook delivers lifecycle events to guild webhook subscribers.
package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

const (
	HeaderSecret    = "X-Webhook-Secret"
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"

	signatureContext = "ticket-bot 2024 webhook body signature"
)

// Payload is the body posted to every subscriber.
type Payload struct {
	Event     string    `json:"event"`
	GuildID   string    `json:"guildId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DeliveryResult is the outcome of one delivery. A failed delivery carries
// Err; it is never returned to the caller of Trigger as an error.
type DeliveryResult struct {
	WebhookID  string
	Name       string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// OK reports whether the subscriber accepted the delivery.
func (r DeliveryResult) OK() bool {
	return r.Err == nil
}

// Notifier fans events out to enabled subscriptions.
type Notifier struct {
	webhooks repository.WebhookRepository
	client   *http.Client
	cfg      config.WebhookConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewNotifier builds a notifier. Each request is bounded by cfg.Timeout().
func NewNotifier(webhooks repository.WebhookRepository, cfg config.WebhookConfig, logger *zap.Logger, metrics *observability.Metrics) *Notifier {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	return &Notifier{
		webhooks: webhooks,
		client:   &http.Client{Timeout: cfg.Timeout()},
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Trigger delivers event to every enabled subscription of guildID that lists
// it. Deliveries run concurrently and fail independently. Trigger never
// fails; the per-subscriber outcomes are returned for inspection.
func (n *Notifier) Trigger(ctx context.Context, guildID, event string, data any) []DeliveryResult {
	logger := n.logger.With(zap.String("guild_id", guildID), zap.String("event", event))

	subs, err := n.webhooks.ListEnabledForEvent(ctx, guildID, event)
	if err != nil {
		logger.Error("load webhook subscriptions failed", zap.Error(err))
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(Payload{
		Event:     event,
		GuildID:   guildID,
		Timestamp: n.now().UTC(),
		Data:      data,
	})
	if err != nil {
		logger.Error("encode webhook payload failed", zap.Error(err))
		return nil
	}

	results := make([]DeliveryResult, len(subs))
	var g errgroup.Group
	g.SetLimit(n.cfg.MaxConcurrent)
	for i := range subs {
		i := i
		g.Go(func() error {
			results[i] = n.deliver(ctx, subs[i], event, body)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		n.metrics.RecordDelivery(event, res.OK(), res.Duration)
		fields := []zap.Field{
			zap.String("webhook", res.Name),
			zap.String("webhook_id", res.WebhookID),
			zap.Int("status", res.StatusCode),
			zap.Duration("duration", res.Duration),
		}
		if res.OK() {
			logger.Info("webhook delivered", fields...)
		} else {
			logger.Warn("webhook delivery failed", append(fields, zap.Error(res.Err))...)
		}
	}
	return results
}

func (n *Notifier) deliver(ctx context.Context, sub domain.WebhookSubscription, event string, body []byte) DeliveryResult {
	res := DeliveryResult{WebhookID: sub.ID, Name: sub.Name}
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set(HeaderEvent, event)
	if sub.HasSecret() {
		req.Header.Set(HeaderSecret, *sub.Secret)
		req.Header.Set(HeaderSignature, Sign(*sub.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = fmt.Errorf("subscriber responded %d", resp.StatusCode)
	}
	res.Duration = time.Since(start)
	return res
}

// Sign returns the hex BLAKE3 keyed hash of body under a key derived from
// secret. Receivers recompute it to authenticate the body, not just the sender.
func Sign(secret string, body []byte) string {
	key := make([]byte, 32)
	blake3.DeriveKey(signatureContext, []byte(secret), key)
	h, err := blake3.NewKeyed(key)
	if err != nil {
		return ""
	}
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
