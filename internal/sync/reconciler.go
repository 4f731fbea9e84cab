package sync

import (
	"slices"
	stdsync "sync"

	"github.com/matheus3301/convo/internal/api"
)

// Entry is one row of a thread. ClientID is set only while the entry is a
// locally inserted message still waiting for the server's reply.
type Entry struct {
	api.Message
	ClientID string
}

// Pending reports whether the entry has no server identity yet.
func (e Entry) Pending() bool { return e.ClientID != "" }

// Thread is the client-side message list of one conversation. It merges
// the fetched history, pushed messages and send replies into a single
// arrival-ordered sequence in which no server id appears twice.
type Thread struct {
	conversationID int64

	mu       stdsync.Mutex
	entries  []Entry
	seen     map[int64]struct{}
	onChange func()
}

// NewThread returns an empty thread for conversationID.
func NewThread(conversationID int64) *Thread {
	return &Thread{
		conversationID: conversationID,
		seen:           make(map[int64]struct{}),
	}
}

// ConversationID returns the conversation this thread belongs to.
func (t *Thread) ConversationID() int64 { return t.conversationID }

// OnChange registers fn to run after every mutation. fn runs without the
// thread lock held. Pass nil to remove it.
func (t *Thread) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// LoadInitial installs the fetched history. Messages that reached the
// thread before the history did (pushed or sent while the fetch was in
// flight) and are missing from it are kept after the history, in their
// original order. Pending entries are kept as well. Duplicate ids inside
// msgs collapse to the first occurrence.
func (t *Thread) LoadInitial(msgs []api.Message) {
	t.mu.Lock()
	prior := t.entries
	t.entries = make([]Entry, 0, len(msgs)+len(prior))
	t.seen = make(map[int64]struct{}, len(msgs)+len(prior))
	for _, m := range msgs {
		t.appendLocked(m)
	}
	for _, e := range prior {
		if e.Pending() {
			t.entries = append(t.entries, e)
			continue
		}
		t.appendLocked(e.Message)
	}
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// AppendIfNew appends msg unless a message with the same id is already
// present. It reports whether msg was appended.
func (t *Thread) AppendIfNew(msg api.Message) bool {
	t.mu.Lock()
	added := t.appendLocked(msg)
	fn := t.onChange
	t.mu.Unlock()

	if added && fn != nil {
		fn()
	}
	return added
}

func (t *Thread) appendLocked(msg api.Message) bool {
	if _, ok := t.seen[msg.ID]; ok {
		return false
	}
	t.seen[msg.ID] = struct{}{}
	t.entries = append(t.entries, Entry{Message: msg})
	return true
}

// AddPending appends a locally composed message tagged with clientID.
// Its ID is ignored until ResolvePending supplies the server's copy.
func (t *Thread) AddPending(clientID string, draft api.Message) {
	draft.ID = 0
	t.mu.Lock()
	t.entries = append(t.entries, Entry{Message: draft, ClientID: clientID})
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// ResolvePending replaces the pending entry tagged clientID with msg, in
// place. If msg already arrived by another path the pending entry is
// removed instead. Without a matching pending entry msg is appended if new.
// It reports whether the thread changed.
func (t *Thread) ResolvePending(clientID string, msg api.Message) bool {
	t.mu.Lock()
	changed := false
	idx := t.pendingIndexLocked(clientID)
	switch {
	case idx < 0:
		changed = t.appendLocked(msg)
	case t.hasLocked(msg.ID):
		t.entries = slices.Delete(t.entries, idx, idx+1)
		changed = true
	default:
		t.entries[idx] = Entry{Message: msg}
		t.seen[msg.ID] = struct{}{}
		changed = true
	}
	fn := t.onChange
	t.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
	return changed
}

// DropPending removes the pending entry tagged clientID, if present.
func (t *Thread) DropPending(clientID string) bool {
	t.mu.Lock()
	idx := t.pendingIndexLocked(clientID)
	if idx >= 0 {
		t.entries = slices.Delete(t.entries, idx, idx+1)
	}
	fn := t.onChange
	t.mu.Unlock()

	if idx >= 0 && fn != nil {
		fn()
	}
	return idx >= 0
}

func (t *Thread) pendingIndexLocked(clientID string) int {
	if clientID == "" {
		return -1
	}
	return slices.IndexFunc(t.entries, func(e Entry) bool { return e.ClientID == clientID })
}

func (t *Thread) hasLocked(id int64) bool {
	_, ok := t.seen[id]
	return ok
}

// Contains reports whether a message with id is present.
func (t *Thread) Contains(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasLocked(id)
}

// Len returns the number of confirmed messages.
func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Entries returns a copy of every entry, pending ones included, in arrival order.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

// Messages returns a copy of the confirmed messages in arrival order.
func (t *Thread) Messages() []api.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]api.Message, 0, len(t.seen))
	for _, e := range t.entries {
		if !e.Pending() {
			out = append(out, e.Message)
		}
	}
	return out
}

// SortedByTime returns the confirmed messages ordered by creation time.
// Messages with equal timestamps keep their arrival order.
func (t *Thread) SortedByTime() []api.Message {
	out := t.Messages()
	slices.SortStableFunc(out, func(a, b api.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
