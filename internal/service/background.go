package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Background runs best-effort side tasks: each is attempted once, bounded
// by a timeout, and its failure is logged and never propagated.
type Background struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewBackground creates a runner. A zero timeout leaves tasks unbounded
// except by Shutdown.
func NewBackground(timeout time.Duration, logger *zap.Logger) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{ctx: ctx, cancel: cancel, timeout: timeout, logger: logger}
}

// Go starts task in its own goroutine. It returns false, without running
// task, once Shutdown has been called.
func (b *Background) Go(name string, task func(ctx context.Context) error, fields ...zap.Field) bool {
	logger := b.logger.With(append(fields, zap.String("task", name))...)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		logger.Warn("side task not started; shutting down")
		return false
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("side task panicked", zap.Any("panic", rec))
			}
		}()

		ctx := b.ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		if err := task(ctx); err != nil {
			logger.Warn("side task failed", zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until every started task returned.
func (b *Background) Wait() {
	b.wg.Wait()
}

// Shutdown refuses new tasks, cancels running ones and waits for them
// until ctx expires.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
