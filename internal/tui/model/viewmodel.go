package model

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/outbox"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/store"
	"github.com/matheus3301/convo/internal/subscription"
	intsync "github.com/matheus3301/convo/internal/sync"
	"go.uber.org/zap"
)

// User-facing error strings. Transport failures never reach the view.
const (
	ErrTextLoad = "Failed to load the conversation. Please try again later."
	ErrTextSend = "Failed to send the message. Please try again."
	ErrTextList = "Failed to load conversations."
)

var (
	ErrNoConversation = errors.New("no conversation open")
	ErrSendInFlight   = errors.New("a message is already being sent")
)

// Backend is the subset of the REST client the view model reads from.
type Backend interface {
	ListConversations(ctx context.Context) ([]api.ConversationSummary, error)
	GetConversation(ctx context.Context, conversationID int64) (*api.ConversationDetail, error)
	CreateConversation(ctx context.Context, recipientID int64) (int64, error)
}

// Sender sends composer text. *outbox.Coordinator implements it.
type Sender interface {
	Send(ctx context.Context, conversationID int64, body string) (api.Message, error)
}

// DraftStore persists unsent composer text. *store.DB implements it.
type DraftStore interface {
	SaveDraft(conversationID int64, body, lastErr string) error
	LoadDraft(conversationID int64) (*store.Draft, error)
	ClearDraft(conversationID int64) error
	ListDrafts() ([]store.Draft, error)
}

// Conversation describes the open conversation.
type Conversation struct {
	ID        int64
	OtherUser api.Participant
}

type active struct {
	conv   Conversation
	thread *intsync.Thread
	handle *subscription.Handle
}

// Deps groups the collaborators of a ViewModel.
type Deps struct {
	Backend Backend
	Sender  Sender
	Subs    *subscription.Manager
	Engine  *intsync.Engine
	Session *session.Session
	Drafts  DraftStore
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// ViewModel holds everything the conversation screens render and owns the
// subscription lifecycle: opening a conversation acquires its push channel,
// leaving it releases the channel.
type ViewModel struct {
	mu sync.RWMutex

	backend Backend
	sender  Sender
	subs    *subscription.Manager
	engine  *intsync.Engine
	session *session.Session
	drafts  DraftStore
	bus     *bus.Bus
	logger  *zap.Logger

	conversations []api.ConversationSummary
	drafted       map[int64]string
	active        *active
	draft         string
	errText       string
	loading       bool
	sending       bool
	Flash         Flash

	refreshCh chan struct{}
	cancel    context.CancelFunc
}

// NewViewModel creates a view model.
func NewViewModel(d Deps) *ViewModel {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		backend:   d.Backend,
		sender:    d.Sender,
		subs:      d.Subs,
		engine:    d.Engine,
		session:   d.Session,
		drafts:    d.Drafts,
		bus:       d.Bus,
		logger:    logger.Named("viewmodel"),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Start forwards thread, subscription and send events from the bus as refresh signals.
func (vm *ViewModel) Start(ctx context.Context) {
	if vm.bus == nil {
		return
	}
	ctx, vm.cancel = context.WithCancel(ctx)
	ch, unsub := vm.bus.Subscribe("", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				vm.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop releases the open conversation and stops event forwarding.
func (vm *ViewModel) Stop() {
	vm.CloseConversation()
	if vm.cancel != nil {
		vm.cancel()
	}
}

func (vm *ViewModel) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindCableDisconnected:
		vm.Flash.SetLevel(FlashWarn, "Live updates paused, reconnecting", 5*time.Second)
	case bus.KindCableConnected:
		vm.Flash.Set("Live updates connected", 3*time.Second)
	}
	vm.signalRefresh()
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	convs, err := vm.backend.ListConversations(ctx)
	if err != nil {
		vm.logger.Warn("list conversations failed", zap.Error(err))
		vm.Flash.SetLevel(FlashErr, ErrTextList, 5*time.Second)
		vm.signalRefresh()
		return err
	}
	drafted := vm.listDrafts()
	vm.mu.Lock()
	vm.conversations = convs
	vm.drafted = drafted
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

func (vm *ViewModel) listDrafts() map[int64]string {
	if vm.drafts == nil {
		return nil
	}
	drafts, err := vm.drafts.ListDrafts()
	if err != nil {
		vm.logger.Warn("list drafts failed", zap.Error(err))
		return nil
	}
	out := make(map[int64]string, len(drafts))
	for _, d := range drafts {
		out[d.ConversationID] = d.Body
	}
	return out
}

// Drafts returns the unsent text per conversation id.
func (vm *ViewModel) Drafts() map[int64]string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return maps.Clone(vm.drafted)
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []api.ConversationSummary {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// StartConversation opens (creating if needed) the conversation with recipientID.
func (vm *ViewModel) StartConversation(ctx context.Context, recipientID int64) (int64, error) {
	id, err := vm.backend.CreateConversation(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	vm.OpenConversation(ctx, id)
	return id, nil
}

// OpenConversation makes id the active conversation: the previous one is
// closed, a fresh thread is bound, the push channel is acquired and the
// history is fetched in the background.
func (vm *ViewModel) OpenConversation(ctx context.Context, id int64) {
	vm.CloseConversation()

	t := intsync.NewThread(id)
	var h *subscription.Handle
	if vm.subs != nil {
		h = vm.subs.Acquire(id)
	}
	vm.engine.Bind(ctx, t, h)

	conv := Conversation{ID: id}
	for _, c := range vm.Conversations() {
		if c.ID == id {
			conv.OtherUser = c.OtherUser
		}
	}

	draft, lastErr := vm.loadDraft(id)

	vm.mu.Lock()
	vm.active = &active{conv: conv, thread: t, handle: h}
	vm.draft = draft
	vm.errText = lastErr
	vm.loading = true
	vm.sending = false
	vm.mu.Unlock()
	vm.signalRefresh()

	go vm.loadHistory(ctx, t)
}

func (vm *ViewModel) loadDraft(id int64) (string, string) {
	if vm.drafts == nil {
		return "", ""
	}
	d, err := vm.drafts.LoadDraft(id)
	if err != nil {
		vm.logger.Warn("load draft failed", zap.Error(err), zap.Int64("conversation_id", id))
		return "", ""
	}
	if d == nil {
		return "", ""
	}
	if d.LastError != "" {
		return d.Body, ErrTextSend
	}
	return d.Body, ""
}

func (vm *ViewModel) isActive(t *intsync.Thread) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active != nil && vm.active.thread == t
}

func (vm *ViewModel) loadHistory(ctx context.Context, t *intsync.Thread) {
	id := t.ConversationID()
	detail, err := vm.backend.GetConversation(ctx, id)
	if err != nil {
		vm.logger.Warn("load conversation failed", zap.Error(err), zap.Int64("conversation_id", id))
		vm.mu.Lock()
		if vm.active != nil && vm.active.thread == t {
			vm.errText = ErrTextLoad
			vm.loading = false
		}
		vm.mu.Unlock()
		vm.signalRefresh()
		return
	}

	if !vm.isActive(t) {
		vm.logger.Debug("discarding history for closed conversation", zap.Int64("conversation_id", id))
		return
	}
	if err := vm.engine.LoadInitial(t, detail.Messages); err != nil {
		vm.logger.Debug("discarding history", zap.Error(err), zap.Int64("conversation_id", id))
		return
	}

	vm.mu.Lock()
	if vm.active != nil && vm.active.thread == t {
		vm.active.conv.OtherUser = detail.OtherUser
		vm.loading = false
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// CloseConversation releases the push channel and discards the thread.
// Unsent text is kept in the draft store.
func (vm *ViewModel) CloseConversation() {
	vm.mu.Lock()
	a := vm.active
	draft, errText := vm.draft, vm.errText
	vm.active = nil
	vm.draft, vm.errText = "", ""
	vm.loading, vm.sending = false, false
	vm.mu.Unlock()

	if a == nil {
		return
	}
	if a.handle != nil {
		a.handle.Release()
	}
	if vm.engine.Current() == a.thread {
		vm.engine.Unbind()
	}
	vm.persistDraft(a.conv.ID, draft, errText)
	vm.signalRefresh()
}

func (vm *ViewModel) persistDraft(id int64, draft, errText string) {
	if vm.drafts == nil {
		return
	}
	var err error
	if draft == "" {
		err = vm.drafts.ClearDraft(id)
	} else {
		err = vm.drafts.SaveDraft(id, draft, errText)
	}
	if err != nil {
		vm.logger.Warn("persist draft failed", zap.Error(err), zap.Int64("conversation_id", id))
		return
	}

	vm.mu.Lock()
	if vm.drafted == nil {
		vm.drafted = make(map[int64]string)
	}
	if draft == "" {
		delete(vm.drafted, id)
	} else {
		vm.drafted[id] = draft
	}
	vm.mu.Unlock()
}

// SetDraft records the composer text.
func (vm *ViewModel) SetDraft(text string) {
	vm.mu.Lock()
	vm.draft = text
	vm.mu.Unlock()
}

// Submit sends body to the open conversation. On failure the draft is
// kept and an error is shown; on success the draft is cleared. A blank
// body does nothing.
func (vm *ViewModel) Submit(ctx context.Context, body string) error {
	vm.mu.Lock()
	a := vm.active
	if a == nil {
		vm.mu.Unlock()
		return ErrNoConversation
	}
	if vm.sending {
		vm.mu.Unlock()
		return ErrSendInFlight
	}
	vm.draft = body
	vm.sending = true
	vm.mu.Unlock()
	vm.signalRefresh()

	_, err := vm.sender.Send(ctx, a.conv.ID, body)

	vm.mu.Lock()
	current := vm.active == a
	if current {
		vm.sending = false
	}
	switch {
	case errors.Is(err, outbox.ErrEmptyBody):
	case err != nil:
		if current {
			vm.errText = ErrTextSend
		}
	default:
		if current {
			vm.draft = ""
			vm.errText = ""
		}
	}
	vm.mu.Unlock()

	switch {
	case errors.Is(err, outbox.ErrEmptyBody):
	case err != nil:
		vm.persistDraft(a.conv.ID, body, err.Error())
	default:
		vm.persistDraft(a.conv.ID, "", "")
	}
	vm.signalRefresh()
	return err
}

// Conversation returns the open conversation and whether one is open.
func (vm *ViewModel) Conversation() (Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return Conversation{}, false
	}
	return vm.active.conv, true
}

// Entries returns the open thread's entries, pending ones included.
func (vm *ViewModel) Entries() []intsync.Entry {
	vm.mu.RLock()
	a := vm.active
	vm.mu.RUnlock()
	if a == nil {
		return nil
	}
	return a.thread.Entries()
}

// Messages returns the open thread's confirmed messages.
func (vm *ViewModel) Messages() []api.Message {
	vm.mu.RLock()
	a := vm.active
	vm.mu.RUnlock()
	if a == nil {
		return nil
	}
	return a.thread.Messages()
}

// SubscriptionState returns the push channel state of the open conversation.
func (vm *ViewModel) SubscriptionState() status.State {
	vm.mu.RLock()
	a := vm.active
	vm.mu.RUnlock()
	if a == nil || a.handle == nil {
		return status.Unbound
	}
	return a.handle.State()
}

// Draft returns the composer text.
func (vm *ViewModel) Draft() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.draft
}

// Error returns the error shown in the conversation view, or empty.
func (vm *ViewModel) Error() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.errText
}

// Loading reports whether the history fetch is in flight.
func (vm *ViewModel) Loading() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.loading
}

// Sending reports whether a send is in flight.
func (vm *ViewModel) Sending() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.sending
}

// IsOutgoing reports whether m was written by the signed-in user.
func (vm *ViewModel) IsOutgoing(m api.Message) bool {
	if vm.session == nil {
		return false
	}
	return vm.session.IsOutgoing(m)
}

// User returns the signed-in user.
func (vm *ViewModel) User() api.User {
	if vm.session == nil {
		return api.User{}
	}
	return vm.session.User()
}

// Details summarizes the open conversation for the details page.
type Details struct {
	Conversation
	Messages   int
	Pending    int
	State      status.State
	Generation uint64
	Dropped    uint64
}

// Details returns a snapshot of the open conversation's sync state.
func (vm *ViewModel) Details() (Details, bool) {
	vm.mu.RLock()
	a := vm.active
	vm.mu.RUnlock()
	if a == nil {
		return Details{}, false
	}
	d := Details{Conversation: a.conv, State: status.Unbound}
	for _, e := range a.thread.Entries() {
		if e.Pending() {
			d.Pending++
		} else {
			d.Messages++
		}
	}
	if a.handle != nil {
		d.State = a.handle.State()
		d.Generation = a.handle.Scope().Generation
		d.Dropped = a.handle.Dropped()
	}
	return d, true
}
