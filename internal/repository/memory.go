package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Memory is an in-process store used when no Postgres DSN is configured.
// It enforces the same uniqueness rules as the SQL schema.
type Memory struct {
	mu             sync.Mutex
	tickets        map[string]*domain.Ticket
	quickResponses []domain.QuickResponse
	ratings        map[string]domain.Rating
	webhooks       []domain.WebhookSubscription
	logs           []domain.LogEntry
	configs        map[string]domain.GuildConfig
	messages       map[string]domain.GuildMessage
	now            func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tickets:  make(map[string]*domain.Ticket),
		ratings:  make(map[string]domain.Rating),
		configs:  make(map[string]domain.GuildConfig),
		messages: make(map[string]domain.GuildMessage),
		now:      time.Now,
	}
}

// Repos exposes the store through the repository interfaces.
func (m *Memory) Repos() *Repos {
	return &Repos{
		Tickets:  memoryTickets{m},
		Feedback: memoryFeedback{m},
		Webhooks: memoryWebhooks{m},
		Logs:     memoryLogs{m},
		Guilds:   memoryGuilds{m},
	}
}

// PutGuildConfig stores a guild configuration.
func (m *Memory) PutGuildConfig(cfg domain.GuildConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.GuildID] = cfg
}

// PutGuildMessage stores a message template.
func (m *Memory) PutGuildMessage(msg domain.GuildMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.GuildID+"/"+msg.Key] = msg
}

type memoryTickets struct{ m *Memory }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if ticket.Status == domain.TicketStatusOpen {
		for _, existing := range m.tickets {
			if existing.GuildID == ticket.GuildID && existing.UserID == ticket.UserID && existing.IsOpen() {
				return ErrOpenTicketExists
			}
		}
	}
	now := m.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	m.tickets[ticket.ID] = &stored
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return r.find(func(t *domain.Ticket) bool { return t.ID == id })
}

func (r memoryTickets) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	return r.find(func(t *domain.Ticket) bool { return t.ChannelID == channelID })
}

func (r memoryTickets) FindOpenByUser(_ context.Context, guildID, userID string) (*domain.Ticket, error) {
	return r.find(func(t *domain.Ticket) bool {
		return t.GuildID == guildID && t.UserID == userID && t.IsOpen()
	})
}

func (r memoryTickets) find(match func(*domain.Ticket) bool) (*domain.Ticket, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tickets {
		if match(t) {
			found := *t
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTickets) CloseOpen(_ context.Context, id, closedBy string, closedAt time.Time) (*domain.Ticket, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || !t.IsOpen() {
		return nil, ErrTicketNotOpen
	}
	t.Status = domain.TicketStatusClosed
	t.ClosedAt = &closedAt
	t.ClosedBy = &closedBy
	t.UpdatedAt = m.now()
	closed := *t
	return &closed, nil
}

func (r memoryTickets) CountByGuild(_ context.Context, guildID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	count := 0
	for _, t := range r.m.tickets {
		if t.GuildID == guildID {
			count++
		}
	}
	return count, nil
}

func (r memoryTickets) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.m.mu.Lock()
	var result []domain.Ticket
	for _, t := range r.m.tickets {
		if t.GuildID != filter.GuildID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		result = append(result, *t)
	}
	r.m.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r memoryTickets) Stats(_ context.Context, guildID string) (domain.TicketStats, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.TicketStats
	for _, t := range m.tickets {
		if t.GuildID != guildID {
			continue
		}
		stats.Total++
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
	}
	sum, n := 0, 0
	for ticketID, rating := range m.ratings {
		if t, ok := m.tickets[ticketID]; ok && t.GuildID == guildID {
			sum += rating.Stars
			n++
		}
	}
	if n > 0 {
		stats.AverageRating = float64(sum) / float64(n)
	}
	return stats, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memoryFeedback struct{ m *Memory }

func (r memoryFeedback) CreateQuickResponse(_ context.Context, response *domain.QuickResponse) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	response.ID = uuid.NewString()
	response.CreatedAt = m.now()
	m.quickResponses = append(m.quickResponses, *response)
	return nil
}

func (r memoryFeedback) CreateRating(_ context.Context, rating *domain.Rating) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ratings[rating.TicketID]; exists {
		return ErrRatingExists
	}
	rating.ID = uuid.NewString()
	rating.CreatedAt = m.now()
	m.ratings[rating.TicketID] = *rating
	return nil
}

func (r memoryFeedback) ListQuickResponses(_ context.Context, ticketID string) ([]domain.QuickResponse, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []domain.QuickResponse
	for _, qr := range r.m.quickResponses {
		if qr.TicketID == ticketID {
			result = append(result, qr)
		}
	}
	return result, nil
}

func (r memoryFeedback) GetRatingByTicket(_ context.Context, ticketID string) (*domain.Rating, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rating, ok := r.m.ratings[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rating, nil
}

type memoryWebhooks struct{ m *Memory }

func (r memoryWebhooks) ListEnabledForEvent(_ context.Context, guildID, event string) ([]domain.WebhookSubscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []domain.WebhookSubscription
	for i := range r.m.webhooks {
		wh := r.m.webhooks[i]
		if wh.GuildID == guildID && wh.Enabled && wh.Subscribes(event) {
			result = append(result, wh)
		}
	}
	return result, nil
}

func (r memoryWebhooks) ListByGuild(_ context.Context, guildID string) ([]domain.WebhookSubscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []domain.WebhookSubscription
	for _, wh := range r.m.webhooks {
		if wh.GuildID == guildID {
			result = append(result, wh)
		}
	}
	return result, nil
}

func (r memoryWebhooks) Create(_ context.Context, webhook *domain.WebhookSubscription) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	webhook.ID = uuid.NewString()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	stored := *webhook
	stored.Events = append([]string(nil), webhook.Events...)
	m.webhooks = append(m.webhooks, stored)
	return nil
}

type memoryLogs struct{ m *Memory }

func (r memoryLogs) Create(_ context.Context, entry *domain.LogEntry) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = m.now()
	m.logs = append(m.logs, *entry)
	return nil
}

func (r memoryLogs) ListByGuild(_ context.Context, guildID string, limit int) ([]domain.LogEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []domain.LogEntry
	for i := len(r.m.logs) - 1; i >= 0; i-- {
		if r.m.logs[i].GuildID == guildID {
			result = append(result, r.m.logs[i])
		}
	}
	if limit <= 0 {
		limit = 100
	}
	return paginate(result, limit, 0), nil
}

func (r memoryLogs) ListByTicket(_ context.Context, ticketID string) ([]domain.LogEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []domain.LogEntry
	for _, entry := range r.m.logs {
		if entry.TicketID != nil && *entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type memoryGuilds struct{ m *Memory }

func (r memoryGuilds) GetConfig(_ context.Context, guildID string) (*domain.GuildConfig, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cfg, ok := r.m.configs[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (r memoryGuilds) GetMessage(_ context.Context, guildID, key string) (*domain.GuildMessage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	msg, ok := r.m.messages[guildID+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return &msg, nil
}
