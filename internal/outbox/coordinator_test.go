package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/session"
	intsync "github.com/matheus3301/convo/internal/sync"
	"go.uber.org/zap"
)

// mockSender records calls and returns configurable results.
type mockSender struct {
	mu      sync.Mutex
	calls   []sendCall
	err     error
	nextID  int64
	release chan struct{} // when set, SendMessage blocks until closed
	started chan struct{}
}

type sendCall struct {
	ConversationID int64
	Body           string
}

func (m *mockSender) SendMessage(_ context.Context, conversationID int64, body string) (api.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sendCall{ConversationID: conversationID, Body: body})
	m.nextID++
	id := 100 + m.nextID
	m.mu.Unlock()

	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return api.Message{}, m.err
	}
	return api.Message{ID: id, Body: body, UserID: 1, CreatedAt: time.Now()}, nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type threadSlot struct {
	mu sync.Mutex
	t  *intsync.Thread
}

func (s *threadSlot) Current() *intsync.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

func (s *threadSlot) set(t *intsync.Thread) {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
}

func newCoordinator(sender MessageSender, slot *threadSlot, b *bus.Bus, opts ...Option) *Coordinator {
	sess := session.New("tok", api.User{ID: 1, Name: "Alice"})
	return NewCoordinator(sender, slot, sess, b, zap.NewNop(), opts...)
}

func TestSendEmptyBodyNoNetwork(t *testing.T) {
	mock := &mockSender{}
	c := newCoordinator(mock, &threadSlot{t: intsync.NewThread(42)}, nil)

	for _, body := range []string{"", "   ", "\n\t "} {
		if _, err := c.Send(context.Background(), 42, body); !errors.Is(err, ErrEmptyBody) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyBody", body, err)
		}
	}
	if mock.callCount() != 0 {
		t.Errorf("network calls = %d, want 0", mock.callCount())
	}
}

func TestSendAppendsAfterReply(t *testing.T) {
	mock := &mockSender{release: make(chan struct{}), started: make(chan struct{})}
	th := intsync.NewThread(42)
	c := newCoordinator(mock, &threadSlot{t: th}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), 42, "hello")
		done <- err
	}()

	<-mock.started
	if len(th.Entries()) != 0 {
		t.Errorf("entries before reply = %d, want 0", len(th.Entries()))
	}
	close(mock.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return")
	}
	if th.Len() != 1 || th.Messages()[0].Body != "hello" {
		t.Errorf("messages = %+v", th.Messages())
	}
}

func TestSendBodyNotTrimmed(t *testing.T) {
	mock := &mockSender{}
	c := newCoordinator(mock, &threadSlot{}, nil)
	if _, err := c.Send(context.Background(), 42, "  hi  "); err != nil {
		t.Fatal(err)
	}
	if mock.calls[0].Body != "  hi  " {
		t.Errorf("body = %q", mock.calls[0].Body)
	}
}

// TestSendReplyAfterPush covers the push for our own message arriving
// before the HTTP reply.
func TestSendReplyAfterPush(t *testing.T) {
	mock := &mockSender{}
	th := intsync.NewThread(42)
	b := bus.New()
	ch, unsub := b.Subscribe("send.", 10)
	defer unsub()
	c := newCoordinator(mock, &threadSlot{t: th}, b)

	th.AppendIfNew(api.Message{ID: 101, Body: "hi"})
	msg, err := c.Send(context.Background(), 42, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != 101 {
		t.Fatalf("reply id = %d, want 101", msg.ID)
	}
	if th.Len() != 1 {
		t.Errorf("Len() = %d, want 1", th.Len())
	}

	select {
	case evt := <-ch:
		ack, ok := evt.Payload.(Ack)
		if evt.Kind != bus.KindSendAck || !ok {
			t.Fatalf("event = %+v", evt)
		}
		if ack.Applied {
			t.Error("Ack.Applied = true for a message already present")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send.ack")
	}
}

func TestSendFailureKeepsThreadUnchanged(t *testing.T) {
	sendErr := errors.New("network down")
	mock := &mockSender{err: sendErr}
	th := intsync.NewThread(42)
	th.AppendIfNew(api.Message{ID: 1, Body: "earlier"})
	b := bus.New()
	ch, unsub := b.Subscribe("send.", 10)
	defer unsub()
	c := newCoordinator(mock, &threadSlot{t: th}, b)

	_, err := c.Send(context.Background(), 42, "hello")
	if !errors.Is(err, sendErr) {
		t.Fatalf("error = %v, want wrapped %v", err, sendErr)
	}
	if th.Len() != 1 {
		t.Errorf("Len() = %d, want 1", th.Len())
	}
	if mock.callCount() != 1 {
		t.Errorf("calls = %d, want exactly one attempt", mock.callCount())
	}

	select {
	case evt := <-ch:
		f, ok := evt.Payload.(Failure)
		if evt.Kind != bus.KindSendFailed || !ok || f.Body != "hello" {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send.failed")
	}
}

func TestSendConversationChangedInFlight(t *testing.T) {
	for _, optimistic := range []bool{false, true} {
		mock := &mockSender{release: make(chan struct{}), started: make(chan struct{})}
		first := intsync.NewThread(42)
		slot := &threadSlot{t: first}
		c := newCoordinator(mock, slot, nil, WithOptimistic(optimistic))

		done := make(chan error, 1)
		go func() {
			_, err := c.Send(context.Background(), 42, "late")
			done <- err
		}()
		<-mock.started

		second := intsync.NewThread(7)
		slot.set(second)
		close(mock.release)
		if err := <-done; err != nil {
			t.Fatal(err)
		}

		if len(first.Entries()) != 0 {
			t.Errorf("optimistic=%v: old thread entries = %+v", optimistic, first.Entries())
		}
		if len(second.Entries()) != 0 {
			t.Errorf("optimistic=%v: new thread entries = %+v", optimistic, second.Entries())
		}
	}
}

func TestOptimisticPendingResolved(t *testing.T) {
	mock := &mockSender{release: make(chan struct{}), started: make(chan struct{})}
	th := intsync.NewThread(42)
	c := newCoordinator(mock, &threadSlot{t: th}, nil, WithOptimistic(true))
	if !c.Optimistic() {
		t.Fatal("Optimistic() = false")
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), 42, "hello")
		done <- err
	}()
	<-mock.started

	entries := th.Entries()
	if len(entries) != 1 || !entries[0].Pending() || entries[0].UserName != "Alice" {
		t.Fatalf("entries while in flight = %+v", entries)
	}
	if th.Len() != 0 {
		t.Errorf("Len() = %d, pending must not count", th.Len())
	}

	close(mock.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	entries = th.Entries()
	if len(entries) != 1 || entries[0].Pending() || entries[0].ID != 101 {
		t.Errorf("entries after reply = %+v", entries)
	}
}

func TestOptimisticFailureDropsPending(t *testing.T) {
	mock := &mockSender{err: errors.New("boom")}
	th := intsync.NewThread(42)
	c := newCoordinator(mock, &threadSlot{t: th}, nil, WithOptimistic(true))

	if _, err := c.Send(context.Background(), 42, "hello"); err == nil {
		t.Fatal("expected error")
	}
	if len(th.Entries()) != 0 {
		t.Errorf("entries = %+v, want none", th.Entries())
	}
}

type senderFunc func(ctx context.Context, conversationID int64, body string) (api.Message, error)

func (f senderFunc) SendMessage(ctx context.Context, conversationID int64, body string) (api.Message, error) {
	return f(ctx, conversationID, body)
}

func TestSendReplyWithoutIDFails(t *testing.T) {
	noID := senderFunc(func(_ context.Context, _ int64, body string) (api.Message, error) {
		return api.Message{Body: body}, nil
	})

	for _, optimistic := range []bool{false, true} {
		th := intsync.NewThread(42)
		th.LoadInitial([]api.Message{{ID: 1, Body: "hi"}})
		b := bus.New()
		ch, unsub := b.Subscribe("send.", 10)
		c := newCoordinator(noID, &threadSlot{t: th}, b, WithOptimistic(optimistic))

		for _, body := range []string{"first", "second"} {
			if _, err := c.Send(context.Background(), 42, body); !errors.Is(err, ErrNoMessageID) {
				t.Errorf("optimistic=%v: Send(%q) error = %v, want ErrNoMessageID", optimistic, body, err)
			}
			select {
			case evt := <-ch:
				if f, ok := evt.Payload.(Failure); evt.Kind != bus.KindSendFailed || !ok || f.Body != body {
					t.Errorf("optimistic=%v: event = %+v", optimistic, evt)
				}
			case <-time.After(time.Second):
				t.Fatalf("optimistic=%v: timeout waiting for send.failed", optimistic)
			}
		}
		if entries := th.Entries(); len(entries) != 1 || entries[0].ID != 1 {
			t.Errorf("optimistic=%v: entries = %+v, want only the history", optimistic, entries)
		}
		unsub()
	}
}
