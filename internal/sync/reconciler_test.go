package sync

import (
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/api"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func msg(id int64, body string) api.Message {
	return api.Message{ID: id, Body: body, UserID: 1, CreatedAt: base.Add(time.Duration(id) * time.Minute)}
}

func ids(msgs []api.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAppendIfNewDedup(t *testing.T) {
	th := NewThread(42)
	if !th.AppendIfNew(msg(1, "hi")) {
		t.Fatal("first append rejected")
	}
	if th.AppendIfNew(msg(1, "hi again")) {
		t.Error("duplicate id appended")
	}
	if th.Len() != 1 {
		t.Errorf("Len() = %d, want 1", th.Len())
	}
	if got := th.Messages()[0].Body; got != "hi" {
		t.Errorf("body = %q, want first copy kept", got)
	}
}

// TestDuplicatePathsCountOnce covers a message reaching the thread through
// history, the send reply and the push channel in any combination.
func TestDuplicatePathsCountOnce(t *testing.T) {
	m := msg(100, "ok")
	orders := []struct {
		name  string
		apply func(th *Thread)
	}{
		{"reply and push", func(th *Thread) { th.AppendIfNew(m); th.AppendIfNew(m) }},
		{"history then push", func(th *Thread) { th.LoadInitial([]api.Message{m}); th.AppendIfNew(m) }},
		{"push then history", func(th *Thread) { th.AppendIfNew(m); th.LoadInitial([]api.Message{m}) }},
		{"all three", func(th *Thread) {
			th.AppendIfNew(m)
			th.LoadInitial([]api.Message{m})
			th.AppendIfNew(m)
		}},
	}
	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThread(42)
			tt.apply(th)
			if th.Len() != 1 {
				t.Errorf("Len() = %d, want 1", th.Len())
			}
		})
	}
}

func TestOrderIndependentMembership(t *testing.T) {
	a, b := msg(1, "a"), msg(2, "b")

	ab := NewThread(42)
	ab.AppendIfNew(a)
	ab.AppendIfNew(b)

	ba := NewThread(42)
	ba.AppendIfNew(b)
	ba.AppendIfNew(a)

	if ab.Len() != ba.Len() || !ab.Contains(1) || !ab.Contains(2) || !ba.Contains(1) || !ba.Contains(2) {
		t.Errorf("membership differs: %v vs %v", ids(ab.Messages()), ids(ba.Messages()))
	}
	// Arrival order is kept; only SortedByTime reorders.
	if !equalIDs(ids(ba.Messages()), []int64{2, 1}) {
		t.Errorf("Messages() = %v, want arrival order [2 1]", ids(ba.Messages()))
	}
	if !equalIDs(ids(ba.SortedByTime()), []int64{1, 2}) {
		t.Errorf("SortedByTime() = %v, want [1 2]", ids(ba.SortedByTime()))
	}
}

func TestLoadInitialThenAppend(t *testing.T) {
	th := NewThread(42)
	th.LoadInitial([]api.Message{msg(1, "a"), msg(2, "b"), msg(3, "c")})

	th.AppendIfNew(msg(2, "b"))
	if th.Len() != 3 {
		t.Errorf("Len() = %d after re-append of loaded message, want 3", th.Len())
	}

	th.AppendIfNew(msg(4, "d"))
	if got := ids(th.Messages()); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Errorf("Messages() = %v, want [1 2 3 4]", got)
	}
}

func TestLoadInitialCollapsesDuplicates(t *testing.T) {
	th := NewThread(42)
	th.LoadInitial([]api.Message{msg(1, "first"), msg(2, "b"), msg(1, "second")})
	if got := ids(th.Messages()); !equalIDs(got, []int64{1, 2}) {
		t.Errorf("Messages() = %v, want [1 2]", got)
	}
	if th.Messages()[0].Body != "first" {
		t.Error("first occurrence not kept")
	}
}

// TestLoadInitialKeepsEarlyArrivals covers a push landing before the
// history fetch completes.
func TestLoadInitialKeepsEarlyArrivals(t *testing.T) {
	th := NewThread(42)
	th.AppendIfNew(msg(5, "pushed early"))
	th.AppendIfNew(msg(2, "also in history"))

	th.LoadInitial([]api.Message{msg(1, "a"), msg(2, "also in history")})

	if got := ids(th.Messages()); !equalIDs(got, []int64{1, 2, 5}) {
		t.Errorf("Messages() = %v, want [1 2 5]", got)
	}
}

func TestLoadInitialReplacesOnReload(t *testing.T) {
	th := NewThread(42)
	th.LoadInitial([]api.Message{msg(1, "a")})
	th.LoadInitial([]api.Message{msg(1, "a"), msg(2, "b")})
	if th.Len() != 2 {
		t.Errorf("Len() = %d, want 2", th.Len())
	}
}

// TestConversation42 is the end-to-end ordering example: history [10, 11],
// push 12, then the send reply for 12.
func TestConversation42(t *testing.T) {
	th := NewThread(42)
	th.LoadInitial([]api.Message{msg(10, "hi"), msg(11, "there")})
	if th.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", th.Len())
	}

	th.AppendIfNew(msg(12, "ok"))
	th.AppendIfNew(msg(12, "ok"))

	if got := ids(th.Messages()); !equalIDs(got, []int64{10, 11, 12}) {
		t.Errorf("Messages() = %v, want [10 11 12]", got)
	}
}

func TestPendingResolvedInPlace(t *testing.T) {
	th := NewThread(42)
	th.AppendIfNew(msg(1, "a"))
	th.AddPending("c-1", api.Message{Body: "draft", UserID: 7})
	th.AppendIfNew(msg(2, "b"))

	if th.Len() != 2 {
		t.Errorf("Len() = %d, pending must not count", th.Len())
	}
	entries := th.Entries()
	if len(entries) != 3 || !entries[1].Pending() {
		t.Fatalf("entries = %+v", entries)
	}

	if !th.ResolvePending("c-1", msg(9, "draft")) {
		t.Fatal("ResolvePending() = false")
	}
	if got := ids(th.Messages()); !equalIDs(got, []int64{1, 9, 2}) {
		t.Errorf("Messages() = %v, want [1 9 2]", got)
	}
}

func TestPendingResolvedAfterPush(t *testing.T) {
	th := NewThread(42)
	th.AddPending("c-1", api.Message{Body: "draft"})
	th.AppendIfNew(msg(9, "draft"))

	th.ResolvePending("c-1", msg(9, "draft"))

	if len(th.Entries()) != 1 || th.Len() != 1 {
		t.Errorf("entries = %+v, want one confirmed copy", th.Entries())
	}
}

func TestResolveUnknownClientIDAppends(t *testing.T) {
	th := NewThread(42)
	if !th.ResolvePending("missing", msg(3, "x")) {
		t.Error("ResolvePending() without pending entry should append")
	}
	if th.ResolvePending("missing", msg(3, "x")) {
		t.Error("second resolve of known id should be a no-op")
	}
}

func TestDropPending(t *testing.T) {
	th := NewThread(42)
	th.AddPending("c-1", api.Message{Body: "draft"})
	if !th.DropPending("c-1") {
		t.Error("DropPending() = false")
	}
	if th.DropPending("c-1") {
		t.Error("second DropPending() = true")
	}
	if len(th.Entries()) != 0 {
		t.Errorf("entries = %+v", th.Entries())
	}
}

func TestLoadInitialKeepsPending(t *testing.T) {
	th := NewThread(42)
	th.AddPending("c-1", api.Message{Body: "draft"})
	th.LoadInitial([]api.Message{msg(1, "a")})

	entries := th.Entries()
	if len(entries) != 2 || entries[0].ID != 1 || !entries[1].Pending() {
		t.Errorf("entries = %+v", entries)
	}
}

func TestOnChange(t *testing.T) {
	th := NewThread(42)
	calls := 0
	th.OnChange(func() { calls++ })

	th.AppendIfNew(msg(1, "a"))
	th.AppendIfNew(msg(1, "a"))
	th.LoadInitial(nil)
	th.OnChange(nil)
	th.AppendIfNew(msg(2, "b"))

	if calls != 2 {
		t.Errorf("OnChange calls = %d, want 2", calls)
	}
}

func TestMessagesIsCopy(t *testing.T) {
	th := NewThread(42)
	th.AppendIfNew(msg(1, "a"))
	out := th.Messages()
	out[0].Body = "mutated"
	if th.Messages()[0].Body != "a" {
		t.Error("Messages() exposed internal storage")
	}
}
