package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ofType(t events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type scheduledDeletion struct {
	key   string
	delay time.Duration
	task  scheduler.Task
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []scheduledDeletion
	order *[]string
}

func (f *fakeScheduler) Schedule(key string, delay time.Duration, task scheduler.Task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, scheduledDeletion{key: key, delay: delay, task: task})
	if f.order != nil {
		*f.order = append(*f.order, "schedule-deletion")
	}
	return true
}

func (f *fakeScheduler) scheduled() []scheduledDeletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledDeletion(nil), f.tasks...)
}

type fakeCapturer struct {
	mu       sync.Mutex
	captured []string
	err      error
	order    *[]string
}

func (f *fakeCapturer) Capture(_ context.Context, ticket *domain.Ticket) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, ticket.ID)
	if f.order != nil {
		*f.order = append(*f.order, "transcript")
	}
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/transcript_" + ticket.ID + ".html", nil
}

type harness struct {
	mem         *repository.Memory
	repos       *repository.Repos
	platform    *chat.Fake
	events      *eventLog
	deletions   *fakeScheduler
	transcripts *fakeCapturer
	tickets     *TicketService
	feedback    *FeedbackService
	metrics     *observability.Metrics
}

func newHarness() *harness {
	mem := repository.NewMemory()
	repos := mem.Repos()
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	log := &eventLog{}
	for _, t := range events.AllEventTypes() {
		dispatcher.Subscribe(t, log.handle)
	}

	var order []string
	h := &harness{
		mem:         mem,
		repos:       repos,
		platform:    chat.NewFake(),
		events:      log,
		deletions:   &fakeScheduler{order: &order},
		transcripts: &fakeCapturer{order: &order},
		metrics:     observability.NewMetrics(),
	}
	audit := NewAuditService(repos.Logs, logger)
	h.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		GuildRepo:    repos.Guilds,
		Sequence:     repository.NewTicketSequence(nil, "", repos.Tickets, logger),
		Audit:        audit,
		Platform:     h.platform,
		Dispatcher:   dispatcher,
		Transcripts:  h.transcripts,
		Deletions:    h.deletions,
		Config: config.LifecycleConfig{
			ChannelDeleteDelaySeconds: 5,
			ChatTimeoutSeconds:        5,
			SideTaskTimeoutSeconds:    5,
		},
		Logger:  logger,
		Metrics: h.metrics,
	})
	h.feedback = NewFeedbackService(FeedbackDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		Audit:        audit,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Metrics:      h.metrics,
	})
	return h
}

func (h *harness) logs(guildID string, action domain.LogAction) []domain.LogEntry {
	entries, _ := h.repos.Logs.ListByGuild(context.Background(), guildID, 1000)
	var out []domain.LogEntry
	for _, e := range entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func member(id string) chat.Member {
	return chat.Member{UserID: id, Username: "user-" + id}
}

func category(name string) *string {
	return &name
}
