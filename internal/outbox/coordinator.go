package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/session"
	intsync "github.com/matheus3301/convo/internal/sync"
	"go.uber.org/zap"
)

// ErrEmptyBody is returned without any network call when the body is blank.
var ErrEmptyBody = errors.New("message body is empty")

// ErrNoMessageID is returned when the server accepts a message but its reply
// carries no id. Such a reply cannot be reconciled against pushes.
var ErrNoMessageID = errors.New("server reply has no message id")

// MessageSender creates messages on the server. *api.Client implements it.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID int64, body string) (api.Message, error)
}

// ThreadSource returns the thread being viewed. *sync.Engine implements it.
type ThreadSource interface {
	Current() *intsync.Thread
}

// Ack is the payload of send.ack events.
type Ack struct {
	ClientID string
	Message  api.Message
	// Applied is false when the reply was already present or the
	// conversation was closed while the request was in flight.
	Applied bool
}

// Failure is the payload of send.failed events.
type Failure struct {
	ClientID string
	Body     string
	Err      error
}

// Coordinator sends messages and reconciles the server's reply into the
// active thread. A failed send leaves nothing behind in the thread and is
// never retried; the caller keeps its draft.
type Coordinator struct {
	sender     MessageSender
	threads    ThreadSource
	session    *session.Session
	bus        *bus.Bus
	logger     *zap.Logger
	optimistic bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOptimistic shows the message as pending before the server replies.
func WithOptimistic(on bool) Option {
	return func(c *Coordinator) { c.optimistic = on }
}

// NewCoordinator creates a send coordinator.
func NewCoordinator(sender MessageSender, threads ThreadSource, sess *session.Session, b *bus.Bus, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		sender:  sender,
		threads: threads,
		session: sess,
		bus:     b,
		logger:  logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Optimistic reports whether pending entries are inserted before the reply.
func (c *Coordinator) Optimistic() bool { return c.optimistic }

// Send posts body to conversationID. The reply is appended to the active
// thread only if that thread still belongs to conversationID.
func (c *Coordinator) Send(ctx context.Context, conversationID int64, body string) (api.Message, error) {
	if strings.TrimSpace(body) == "" {
		return api.Message{}, ErrEmptyBody
	}
	clientID := uuid.NewString()

	var pendingOn *intsync.Thread
	if c.optimistic {
		if t := c.active(conversationID); t != nil {
			draft := api.Message{Body: body, CreatedAt: time.Now()}
			if c.session != nil {
				u := c.session.User()
				draft.UserID, draft.UserName = u.ID, u.Name
			}
			t.AddPending(clientID, draft)
			pendingOn = t
		}
	}

	msg, err := c.sender.SendMessage(ctx, conversationID, body)
	if err == nil && msg.ID == 0 {
		err = ErrNoMessageID
	}
	if err != nil {
		if pendingOn != nil {
			pendingOn.DropPending(clientID)
		}
		c.logger.Warn("send failed", zap.Error(err), zap.Int64("conversation_id", conversationID), zap.String("client_id", clientID))
		c.publish(bus.KindSendFailed, conversationID, Failure{ClientID: clientID, Body: body, Err: err})
		return api.Message{}, fmt.Errorf("send message: %w", err)
	}

	applied := false
	switch {
	case pendingOn != nil && c.active(conversationID) == pendingOn:
		applied = pendingOn.ResolvePending(clientID, msg)
	case pendingOn != nil:
		pendingOn.DropPending(clientID)
	default:
		if t := c.active(conversationID); t != nil {
			applied = t.AppendIfNew(msg)
		}
	}

	c.logger.Info("message sent",
		zap.Int64("conversation_id", conversationID),
		zap.Int64("message_id", msg.ID),
		zap.String("client_id", clientID),
		zap.Bool("applied", applied))
	c.publish(bus.KindSendAck, conversationID, Ack{ClientID: clientID, Message: msg, Applied: applied})
	return msg, nil
}

func (c *Coordinator) active(conversationID int64) *intsync.Thread {
	if c.threads == nil {
		return nil
	}
	t := c.threads.Current()
	if t == nil || t.ConversationID() != conversationID {
		return nil
	}
	return t
}

func (c *Coordinator) publish(kind string, conversationID int64, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:           kind,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
		Payload:        payload,
	})
}
