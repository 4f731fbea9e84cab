package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cable.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindCableConnected, Payload: "ws://localhost/cable"})

	select {
	case evt := <-ch:
		if evt.Kind != KindCableConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindCableConnected)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("send.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationUpdated, ConversationID: 42})
	b.Publish(Event{Kind: KindSendAck, ConversationID: 42})

	select {
	case evt := <-ch:
		if evt.Kind != KindSendAck {
			t.Errorf("got kind %q, want %s", evt.Kind, KindSendAck)
		}
		if evt.ConversationID != 42 {
			t.Errorf("conversation = %d, want 42", evt.ConversationID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("cable.", 10)
	unsub()
	unsub()

	b.Publish(Event{Kind: KindCableDisconnected})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("send.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindSendAck})
	b.Publish(Event{Kind: KindSendFailed})

	evt := <-ch
	if evt.Kind != KindSendAck {
		t.Errorf("got %q, want %s", evt.Kind, KindSendAck)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}
