package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/subscription"
	"go.uber.org/zap"
)

// ErrNotActive is returned when a result arrives for a thread that is no
// longer the one being viewed.
var ErrNotActive = errors.New("conversation no longer active")

// Engine owns the active thread and feeds it the deliveries of the active
// subscription handle. Only one thread is active at a time; deliveries and
// late results for any other scope are discarded.
type Engine struct {
	bus    *bus.Bus
	logger *zap.Logger

	mu     stdsync.Mutex
	thread *Thread
	scope  subscription.Scope
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bus:    b,
		logger: logger.Named("sync"),
	}
}

// Bind makes t the active thread and starts consuming h's deliveries.
// The previously bound thread is unbound first. h may be nil when push
// delivery is unavailable.
func (e *Engine) Bind(ctx context.Context, t *Thread, h *subscription.Handle) {
	e.Unbind()

	scope := subscription.Scope{ConversationID: t.ConversationID()}
	if h != nil {
		scope = h.Scope()
	}
	t.OnChange(func() { e.publishUpdated(t) })

	e.mu.Lock()
	e.thread = t
	e.scope = scope
	if h == nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.mu.Unlock()

	go func() {
		defer close(done)
		deliveries := h.Deliveries()
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				e.Apply(d)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Unbind stops delivery consumption and forgets the active thread.
func (e *Engine) Unbind() {
	e.mu.Lock()
	t, cancel, done := e.thread, e.cancel, e.done
	e.thread, e.cancel, e.done = nil, nil, nil
	e.scope = subscription.Scope{}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if t != nil {
		t.OnChange(nil)
	}
}

// Stop stops the engine.
func (e *Engine) Stop() {
	e.Unbind()
}

// Current returns the active thread, or nil.
func (e *Engine) Current() *Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thread
}

// Apply appends a pushed message to the active thread if the delivery was
// made under the active scope. It reports whether the message was appended.
func (e *Engine) Apply(d subscription.Delivery) bool {
	e.mu.Lock()
	t, scope := e.thread, e.scope
	e.mu.Unlock()

	if t == nil || d.Scope != scope {
		e.logger.Debug("discarding out-of-scope delivery",
			zap.Int64("conversation_id", d.ConversationID),
			zap.Uint64("generation", d.Generation),
			zap.Int64("message_id", d.Message.ID))
		return false
	}
	return t.AppendIfNew(d.Message)
}

// LoadInitial installs fetched history into t if t is still active.
func (e *Engine) LoadInitial(t *Thread, msgs []api.Message) error {
	if e.Current() != t {
		return ErrNotActive
	}
	t.LoadInitial(msgs)
	e.logger.Debug("history loaded", zap.Int64("conversation_id", t.ConversationID()), zap.Int("messages", len(msgs)))
	return nil
}

func (e *Engine) publishUpdated(t *Thread) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{
		Kind:           bus.KindConversationUpdated,
		Timestamp:      time.Now(),
		ConversationID: t.ConversationID(),
	})
}
