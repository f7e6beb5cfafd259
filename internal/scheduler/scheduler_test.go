package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedule_RunsAfterDelay(t *testing.T) {
	s := New(zap.NewNop())
	done := make(chan struct{})

	require.True(t, s.Schedule("ticket-1", 10*time.Millisecond, func(context.Context) { close(done) }))
	assert.Equal(t, 1, s.Pending())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSchedule_ReplacesSameKey(t *testing.T) {
	s := New(zap.NewNop())
	var first, second atomic.Int32

	s.Schedule("ticket-1", 20*time.Millisecond, func(context.Context) { first.Add(1) })
	s.Schedule("ticket-1", 20*time.Millisecond, func(context.Context) { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestCancel(t *testing.T) {
	s := New(zap.NewNop())
	var ran atomic.Bool

	s.Schedule("ticket-1", 20*time.Millisecond, func(context.Context) { ran.Store(true) })
	assert.True(t, s.Cancel("ticket-1"))
	assert.False(t, s.Cancel("ticket-1"))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestShutdown_DropsPendingTasks(t *testing.T) {
	s := New(zap.NewNop())
	var ran atomic.Bool

	s.Schedule("ticket-1", 20*time.Millisecond, func(context.Context) { ran.Store(true) })
	require.NoError(t, s.Shutdown(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.Schedule("ticket-2", time.Millisecond, func(context.Context) {}))
}

func TestShutdown_CancelsRunningTaskContext(t *testing.T) {
	s := New(zap.NewNop())
	started := make(chan struct{})

	s.Schedule("ticket-1", time.Millisecond, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
