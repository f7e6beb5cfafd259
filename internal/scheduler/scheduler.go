// Package scheduler runs cancelable delayed tasks keyed by an id.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the deferred work. Its context is canceled on Shutdown.
type Task func(ctx context.Context)

// Scheduler holds at most one pending task per key.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
	logger  *zap.Logger
}

// New creates a scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Schedule runs task after delay. Scheduling a key that is already pending
// replaces the earlier task. It returns false once the scheduler is shut down.
func (s *Scheduler) Schedule(key string, delay time.Duration, task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if existing, ok := s.pending[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.closed || s.pending[key] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("scheduled task panicked", zap.String("key", key), zap.Any("panic", rec))
			}
		}()
		task(s.ctx)
	})
	s.pending[key] = timer
	return true
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.pending[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending returns the number of tasks waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown cancels every pending task without running it, cancels the
// context of running tasks and waits for them until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for key, timer := range s.pending {
			timer.Stop()
			delete(s.pending, key)
			s.logger.Info("dropped scheduled task on shutdown", zap.String("key", key))
		}
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
