// Package subscription scopes push delivery to the conversation being viewed.
package subscription

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/status"
	"go.uber.org/zap"
)

const (
	// ChannelName is the server-side channel carrying one conversation's messages.
	ChannelName = "ConversationChannel"

	DefaultQueueSize = 64
)

// Transport opens channel subscriptions. *cable.Consumer implements it.
type Transport interface {
	Subscribe(id cable.Identifier, handler cable.Handler) cable.Subscription
}

// Identifier returns the channel identifier for a conversation.
func Identifier(conversationID int64) cable.Identifier {
	return cable.NewIdentifier(ChannelName, map[string]string{
		"conversation_id": strconv.FormatInt(conversationID, 10),
	})
}

// Scope identifies one acquisition. Generation increases on every Acquire,
// so two acquisitions of the same conversation never share a scope.
type Scope struct {
	ConversationID int64
	Generation     uint64
}

// Delivery is one pushed message tagged with the scope it arrived under.
type Delivery struct {
	Scope
	Message api.Message
}

// Manager holds at most one live subscription at a time.
type Manager struct {
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger
	queueSize int

	acquireMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	current    *Handle
}

// Option configures a Manager.
type Option func(*Manager)

// WithQueueSize sets the capacity of each handle's delivery queue.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// NewManager creates a manager subscribing through t.
func NewManager(t Transport, b *bus.Bus, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		transport: t,
		bus:       b,
		logger:    logger.Named("subscription"),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire subscribes to conversationID, releasing the previously held handle
// first. It never fails: transport problems show up as the handle's state.
func (m *Manager) Acquire(conversationID int64) *Handle {
	m.acquireMu.Lock()
	defer m.acquireMu.Unlock()

	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()
	if prev != nil {
		prev.Release()
	}

	m.mu.Lock()
	m.generation++
	h := &Handle{
		manager:    m,
		scope:      Scope{ConversationID: conversationID, Generation: m.generation},
		machine:    status.NewMachine(conversationID, m.bus),
		deliveries: make(chan Delivery, m.queueSize),
		logger: m.logger.With(
			zap.Int64("conversation_id", conversationID),
			zap.Uint64("generation", m.generation),
		),
	}
	m.current = h
	m.mu.Unlock()

	if err := h.machine.Transition(status.Connecting); err != nil {
		h.logger.Debug("ignoring subscribe", zap.Error(err))
	}
	sub := m.transport.Subscribe(Identifier(conversationID), receiver{h})

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		sub.Unsubscribe()
		return h
	}
	h.sub = sub
	h.mu.Unlock()

	h.logger.Debug("subscription acquired")
	return h
}

// Current returns the live handle, or nil.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ReleaseAll releases the live handle, if any.
func (m *Manager) ReleaseAll() {
	if h := m.Current(); h != nil {
		h.Release()
	}
}

func (m *Manager) forget(h *Handle) {
	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()
}

// Handle is one acquired subscription.
type Handle struct {
	manager *Manager
	scope   Scope
	machine *status.Machine
	logger  *zap.Logger

	mu         sync.Mutex
	sub        cable.Subscription
	deliveries chan Delivery
	released   bool
	dropped    uint64
}

// Scope returns the conversation and generation this handle was acquired for.
func (h *Handle) Scope() Scope { return h.scope }

// ConversationID returns the conversation this handle is scoped to.
func (h *Handle) ConversationID() int64 { return h.scope.ConversationID }

// State returns the lifecycle state.
func (h *Handle) State() status.State { return h.machine.Current() }

// Deliveries returns the queue of pushed messages. It is closed on Release.
func (h *Handle) Deliveries() <-chan Delivery { return h.deliveries }

// Dropped returns how many deliveries were discarded because the queue was full.
func (h *Handle) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release unsubscribes and closes the delivery queue. Safe to call more than once.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	sub := h.sub
	close(h.deliveries)
	h.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if err := h.machine.Transition(status.Unbound); err != nil {
		h.logger.Debug("ignoring release", zap.Error(err))
	}
	h.manager.forget(h)
	h.logger.Debug("subscription released")
}

// receiver adapts transport callbacks onto a handle.
type receiver struct{ h *Handle }

func (r receiver) Connected() {
	if r.h.Released() {
		return
	}
	if err := r.h.machine.Transition(status.Connected); err != nil {
		r.h.logger.Debug("ignoring connect", zap.Error(err))
	}
}

func (r receiver) Disconnected() {
	if r.h.Released() {
		return
	}
	if err := r.h.machine.Transition(status.Disconnected); err != nil {
		r.h.logger.Debug("ignoring disconnect", zap.Error(err))
		return
	}
	r.h.logger.Warn("subscription disconnected")
}

func (r receiver) Received(data json.RawMessage) {
	var msg api.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == 0 {
		r.h.logger.Warn("dropping undecodable push payload", zap.Error(err), zap.ByteString("payload", data))
		return
	}

	h := r.h
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	select {
	case h.deliveries <- Delivery{Scope: h.scope, Message: msg}:
	default:
		h.dropped++
		h.logger.Warn("delivery queue full, dropping message", zap.Int64("message_id", msg.ID))
	}
}
