package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/convo/internal/bus"
)

// State represents the lifecycle state of a conversation subscription.
type State string

const (
	Unbound      State = "UNBOUND"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Disconnected State = "DISCONNECTED"
)

// validTransitions defines allowed state transitions. Any state may go back
// to Unbound on release; Disconnected may recover when the transport reconnects.
var validTransitions = map[State][]State{
	Unbound:      {Connecting},
	Connecting:   {Connected, Disconnected, Unbound},
	Connected:    {Disconnected, Unbound},
	Disconnected: {Connected, Connecting, Unbound},
}

// Machine tracks and enforces the state of one subscription.
type Machine struct {
	mu             sync.RWMutex
	current        State
	conversationID int64
	bus            *bus.Bus
}

// NewMachine creates a new state machine for conversationID starting in Unbound.
func NewMachine(conversationID int64, b *bus.Bus) *Machine {
	return &Machine{
		current:        Unbound,
		conversationID: conversationID,
		bus:            b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:           bus.KindSubscriptionState,
			Timestamp:      time.Now(),
			ConversationID: m.conversationID,
			Payload: StatusChange{
				ConversationID: m.conversationID,
				From:           from,
				To:             to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	ConversationID int64
	From           State
	To             State
}
