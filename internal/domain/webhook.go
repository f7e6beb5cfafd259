package domain

import "time"

// WebhookSubscription is an external endpoint registered by a guild to
// receive a subset of lifecycle events.
type WebhookSubscription struct {
	ID        string
	GuildID   string
	Name      string
	URL       string
	Secret    *string
	Events    []string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscribes reports whether the subscription wants event.
func (w *WebhookSubscription) Subscribes(event string) bool {
	for _, name := range w.Events {
		if name == event {
			return true
		}
	}
	return false
}

// HasSecret reports whether deliveries carry the shared-secret header.
func (w *WebhookSubscription) HasSecret() bool {
	return w.Secret != nil && *w.Secret != ""
}
