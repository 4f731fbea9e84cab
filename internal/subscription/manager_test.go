package subscription

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTransport struct {
	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	id           cable.Identifier
	handler      cable.Handler
	mu           sync.Mutex
	unsubscribed int
}

func (s *fakeSub) Identifier() cable.Identifier { return s.id }

func (s *fakeSub) Unsubscribe() {
	s.mu.Lock()
	s.unsubscribed++
	s.mu.Unlock()
}

func (s *fakeSub) unsubCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func (f *fakeTransport) Subscribe(id cable.Identifier, h cable.Handler) cable.Subscription {
	s := &fakeSub{id: id, handler: h}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *fakeTransport) last(t *testing.T) *fakeSub {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		t.Fatal("no subscriptions")
	}
	return f.subs[len(f.subs)-1]
}

func push(t *testing.T, s *fakeSub, id int64, body string) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"id": id, "body": body, "user_id": 1, "created_at": "2024-01-01T10:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	s.handler.Received(data)
}

func TestIdentifier(t *testing.T) {
	want := `{"channel":"ConversationChannel","conversation_id":"42"}`
	if got := Identifier(42); string(got) != want {
		t.Errorf("Identifier(42) = %s, want %s", got, want)
	}
}

func TestAcquireLifecycle(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())

	h := m.Acquire(42)
	if h.State() != status.Connecting {
		t.Errorf("state after acquire = %s, want CONNECTING", h.State())
	}
	sub := ft.last(t)
	if sub.id != Identifier(42) {
		t.Errorf("subscribed to %s", sub.id)
	}

	sub.handler.Connected()
	if h.State() != status.Connected {
		t.Errorf("state = %s, want CONNECTED", h.State())
	}
	sub.handler.Disconnected()
	if h.State() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", h.State())
	}
	sub.handler.Connected()
	if h.State() != status.Connected {
		t.Errorf("state after recovery = %s, want CONNECTED", h.State())
	}

	h.Release()
	if h.State() != status.Unbound {
		t.Errorf("state after release = %s, want UNBOUND", h.State())
	}
}

func TestReleaseIdempotent(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())
	h := m.Acquire(42)

	h.Release()
	h.Release()

	if n := ft.last(t).unsubCount(); n != 1 {
		t.Errorf("unsubscribe calls = %d, want 1", n)
	}
	if m.Current() != nil {
		t.Error("manager still holds a released handle")
	}
	if _, ok := <-h.Deliveries(); ok {
		t.Error("deliveries channel not closed after release")
	}
}

func TestAcquireReleasesPrevious(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())

	first := m.Acquire(42)
	firstSub := ft.last(t)
	second := m.Acquire(7)

	if !first.Released() {
		t.Error("first handle still live after second acquire")
	}
	if firstSub.unsubCount() != 1 {
		t.Error("first transport subscription not unsubscribed")
	}
	if m.Current() != second {
		t.Error("Current() is not the newest handle")
	}
	if second.Scope().Generation <= first.Scope().Generation {
		t.Errorf("generation did not advance: %d then %d", first.Scope().Generation, second.Scope().Generation)
	}
}

func TestReacquireSameConversationNewGeneration(t *testing.T) {
	m := NewManager(&fakeTransport{}, nil, zap.NewNop())
	a := m.Acquire(42)
	b := m.Acquire(42)
	if a.Scope() == b.Scope() {
		t.Errorf("scopes equal: %+v", a.Scope())
	}
}

func TestDeliveriesScoped(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())
	h := m.Acquire(42)
	sub := ft.last(t)
	sub.handler.Connected()

	push(t, sub, 10, "hello")

	select {
	case d := <-h.Deliveries():
		if d.ConversationID != 42 || d.Generation != h.Scope().Generation {
			t.Errorf("delivery scope = %+v, want %+v", d.Scope, h.Scope())
		}
		if d.Message.ID != 10 || d.Message.Body != "hello" {
			t.Errorf("message = %+v", d.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}
}

func TestReceivedAfterReleaseDropped(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())
	h := m.Acquire(42)
	sub := ft.last(t)
	h.Release()

	// Must not panic on the closed queue.
	push(t, sub, 10, "late")
	sub.handler.Connected()
	if h.State() != status.Unbound {
		t.Errorf("state = %s, want UNBOUND", h.State())
	}
}

func TestUndecodablePayloadDropped(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop())
	h := m.Acquire(42)
	sub := ft.last(t)

	sub.handler.Received(json.RawMessage(`"not a message"`))
	sub.handler.Received(json.RawMessage(`{"body":"no id"}`))

	select {
	case d := <-h.Deliveries():
		t.Fatalf("unexpected delivery %+v", d)
	default:
	}
}

func TestFullQueueDrops(t *testing.T) {
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.NewNop(), WithQueueSize(2))
	h := m.Acquire(42)
	sub := ft.last(t)

	push(t, sub, 1, "a")
	push(t, sub, 2, "b")
	push(t, sub, 3, "c")

	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}
	if len(h.Deliveries()) != 2 {
		t.Errorf("queued = %d, want 2", len(h.Deliveries()))
	}
}

func TestStateEventsPublished(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("subscription.", 16)
	defer unsub()

	ft := &fakeTransport{}
	m := NewManager(ft, b, zap.NewNop())
	h := m.Acquire(42)
	ft.last(t).handler.Connected()
	h.Release()

	want := []status.State{status.Connecting, status.Connected, status.Unbound}
	for _, w := range want {
		select {
		case evt := <-ch:
			change := evt.Payload.(status.StatusChange)
			if change.To != w || change.ConversationID != 42 {
				t.Errorf("change = %+v, want to=%s", change, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", w)
		}
	}
}

func TestRejectedTransitionsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ft := &fakeTransport{}
	m := NewManager(ft, nil, zap.New(core))

	h := m.Acquire(42)
	s := ft.last(t)
	s.handler.Connected()
	s.handler.Connected()
	h.Release()

	if n := logs.FilterMessage("ignoring connect").Len(); n != 1 {
		t.Errorf("ignoring connect logged %d times, want 1", n)
	}
	for _, msg := range []string{"ignoring subscribe", "ignoring release"} {
		if n := logs.FilterMessage(msg).Len(); n != 0 {
			t.Errorf("%q logged %d times on a clean lifecycle", msg, n)
		}
	}
	if h.State() != status.Unbound {
		t.Errorf("state = %s, want UNBOUND", h.State())
	}
}
