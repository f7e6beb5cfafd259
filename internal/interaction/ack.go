package interaction

import (
	"context"
	"errors"
	"sync"
)

var errAlreadyAcknowledged = errors.New("interaction already acknowledged")

type ackState int

const (
	ackNone ackState = iota
	ackReplied
	ackDeferred
)

// trackedResponder records whether the interaction has been acknowledged and
// refuses a second initial response instead of sending it.
type trackedResponder struct {
	mu    sync.Mutex
	inner Responder
	state ackState
}

func track(inner Responder) *trackedResponder {
	return &trackedResponder{inner: inner}
}

func (t *trackedResponder) Reply(ctx context.Context, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case ackReplied:
		return errAlreadyAcknowledged
	case ackDeferred:
		return t.inner.EditReply(ctx, content)
	}
	// A failed reply still counts: the platform may have accepted it.
	t.state = ackReplied
	return t.inner.Reply(ctx, content)
}

func (t *trackedResponder) Defer(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ackNone {
		return errAlreadyAcknowledged
	}
	t.state = ackDeferred
	return t.inner.Defer(ctx)
}

func (t *trackedResponder) EditReply(ctx context.Context, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ackDeferred {
		return errors.New("edit without deferred acknowledgment")
	}
	return t.inner.EditReply(ctx, content)
}

func (t *trackedResponder) DisableComponents(ctx context.Context) error {
	return t.inner.DisableComponents(ctx)
}

func (t *trackedResponder) acknowledged() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != ackNone
}

// fail surfaces the generic failure once: as the initial reply when nothing
// was sent yet, or as an edit of a pending deferred reply.
func (t *trackedResponder) fail(ctx context.Context) error {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	switch state {
	case ackNone:
		return t.Reply(ctx, MsgGenericFailure)
	case ackDeferred:
		return t.EditReply(ctx, MsgGenericFailure)
	}
	return nil
}
