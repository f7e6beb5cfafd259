package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/service"
)

// Stopper is a background component drained on shutdown.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// Workers owns the process's background machinery: webhook forwarding and
// the runners behind deferred channel deletion and close side tasks.
type Workers struct {
	notifications *service.NotificationService
	stoppers      []namedStopper
	logger        *zap.Logger
}

type namedStopper struct {
	name string
	s    Stopper
}

// New creates the worker set. Stoppers are drained in registration order.
func New(notifications *service.NotificationService, logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workers{notifications: notifications, logger: logger}
}

// Track registers a component to drain on Shutdown.
func (w *Workers) Track(name string, s Stopper) {
	if s == nil {
		return
	}
	w.stoppers = append(w.stoppers, namedStopper{name: name, s: s})
}

// Start subscribes webhook forwarding to lifecycle events.
func (w *Workers) Start() {
	if w.notifications == nil {
		return
	}
	w.notifications.RegisterHandlers()
	w.logger.Info("notification worker started")
}

// Shutdown drains every tracked component, even when an earlier one fails.
func (w *Workers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, st := range w.stoppers {
		if err := st.s.Shutdown(ctx); err != nil {
			w.logger.Warn("worker shutdown incomplete", zap.String("worker", st.name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		w.logger.Info("worker stopped", zap.String("worker", st.name))
	}
	return errors.Join(errs...)
}
