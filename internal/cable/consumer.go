package cable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/matheus3301/convo/internal/bus"
	"go.uber.org/zap"
)

const (
	// Servers ping every 3s; two missed pings mean the socket is stale.
	defaultStaleAfter  = 6 * time.Second
	defaultDialTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
	readLimit          = 1 << 20
)

// TokenSource supplies the bearer token used to authenticate the socket.
type TokenSource interface {
	Token() string
}

// Handler receives subscription callbacks. Callbacks run on the consumer's
// read goroutine and must not block.
type Handler interface {
	Connected()
	Disconnected()
	Received(data json.RawMessage)
}

// Subscription is a registered channel subscription.
type Subscription interface {
	Identifier() Identifier
	// Unsubscribe is idempotent.
	Unsubscribe()
}

// DisconnectError is returned when the server closes the session with a
// disconnect frame.
type DisconnectError struct {
	Reason    string
	Reconnect bool
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("server disconnect (reason=%q, reconnect=%v)", e.Reason, e.Reconnect)
}

var errStale = errors.New("connection stale: no frames received")

type subState int

const (
	subPending subState = iota
	subConfirmed
	subDown
)

type subscription struct {
	consumer *Consumer
	id       Identifier
	handler  Handler
	state    subState // guarded by consumer.mu
	once     sync.Once
}

func (s *subscription) Identifier() Identifier { return s.id }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.consumer.remove(s) })
}

// Consumer maintains one WebSocket connection to an ActionCable server and
// multiplexes channel subscriptions over it. Connection failures never reach
// callers: they are logged, reported to handlers as Disconnected, and retried
// with exponential backoff. Every live subscription is re-sent after a reconnect.
type Consumer struct {
	url         string
	origin      string
	tokens      TokenSource
	bus         *bus.Bus
	logger      *zap.Logger
	newBackOff  func() backoff.BackOff
	staleAfter  time.Duration
	dialTimeout time.Duration

	mu     sync.Mutex
	subs   []*subscription
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithBackOff sets the reconnect policy factory.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Consumer) { c.newBackOff = fn }
}

// WithStaleAfter sets how long the socket may stay silent before it is recycled.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Consumer) { c.staleAfter = d }
}

// WithOrigin sets the Origin header sent on the upgrade request.
func WithOrigin(origin string) Option {
	return func(c *Consumer) { c.origin = origin }
}

// NewConsumer creates a consumer for the cable endpoint at rawURL
// (ws:// or wss://). The connection is opened by Start.
func NewConsumer(rawURL string, tokens TokenSource, b *bus.Bus, logger *zap.Logger, opts ...Option) (*Consumer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse cable url: %w", err)
	}
	var origin string
	switch u.Scheme {
	case "ws":
		origin = "http://" + u.Host
	case "wss":
		origin = "https://" + u.Host
	default:
		return nil, fmt.Errorf("cable url %q: scheme must be ws or wss", rawURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		url:         rawURL,
		origin:      origin,
		tokens:      tokens,
		bus:         b,
		logger:      logger.Named("cable"),
		staleAfter:  defaultStaleAfter,
		dialTimeout: defaultDialTimeout,
		newBackOff: func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = 500 * time.Millisecond
			eb.MaxInterval = 30 * time.Second
			eb.MaxElapsedTime = 0
			return eb
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start opens the connection in the background. Calling Start twice is a no-op.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop closes the connection and waits for the read loop to exit.
// Subscriptions stay registered and are re-sent if Start is called again.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether the server has welcomed the current socket.
func (c *Consumer) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Subscribe registers handler for identifier. If the socket is up the
// subscribe command is sent immediately, otherwise on the next welcome.
// Handlers sharing an identifier share one server-side subscription.
func (c *Consumer) Subscribe(id Identifier, handler Handler) Subscription {
	s := &subscription{consumer: c, id: id, handler: handler}

	c.mu.Lock()
	shared, confirmed := false, false
	for _, other := range c.subs {
		if other.id == id {
			shared = true
			confirmed = confirmed || other.state == subConfirmed
		}
	}
	if confirmed {
		s.state = subConfirmed
	}
	c.subs = append(c.subs, s)
	conn := c.conn
	c.mu.Unlock()

	switch {
	case confirmed:
		handler.Connected()
	case !shared && conn != nil:
		c.command(conn, CommandSubscribe, id)
	}
	return s
}

func (c *Consumer) remove(s *subscription) {
	c.mu.Lock()
	remaining := 0
	for i := 0; i < len(c.subs); i++ {
		if c.subs[i] == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			i--
			continue
		}
		if c.subs[i].id == s.id {
			remaining++
		}
	}
	conn := c.conn
	c.mu.Unlock()

	if remaining == 0 && conn != nil {
		c.command(conn, CommandUnsub, s.id)
	}
}

func (c *Consumer) command(conn *websocket.Conn, command string, id Identifier) {
	data, err := json.Marshal(ClientCommand{Command: command, Identifier: id})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.logger.Warn("cable write failed", zap.String("command", command), zap.String("identifier", string(id)), zap.Error(err))
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	b := c.newBackOff()
	for {
		welcomed, err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}

		var de *DisconnectError
		if errors.As(err, &de) && !de.Reconnect {
			c.logger.Warn("server refused connection, not reconnecting", zap.String("reason", de.Reason))
			return
		}
		if welcomed {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Warn("cable reconnect attempts exhausted", zap.Error(err))
			return
		}
		c.logger.Warn("cable connection lost", zap.Error(err), zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (c *Consumer) dialURL() (string, http.Header) {
	header := http.Header{}
	header.Set("Origin", c.origin)

	u, _ := url.Parse(c.url)
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			q := u.Query()
			q.Set("token", tok)
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	return u.String(), header
}

// session dials once and reads until the socket fails. welcomed reports
// whether the server accepted the connection.
func (c *Consumer) session(ctx context.Context) (welcomed bool, err error) {
	target, header := c.dialURL()

	dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	conn, _, err := websocket.Dial(dctx, target, &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: Subprotocols,
	})
	cancel()
	if err != nil {
		c.markDown()
		return false, fmt.Errorf("dial cable: %w", err)
	}
	conn.SetReadLimit(readLimit)
	defer func() { c.drop(conn, welcomed) }()

	for {
		rctx, rcancel := context.WithTimeout(ctx, c.staleAfter)
		_, data, err := conn.Read(rctx)
		stale := errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		rcancel()
		if err != nil {
			if stale {
				return welcomed, errStale
			}
			return welcomed, err
		}

		var f ServerFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("undecodable cable frame", zap.Error(err))
			continue
		}

		switch f.Type {
		case TypeWelcome:
			welcomed = true
			c.welcome(conn)
		case TypePing:
		case TypeConfirm:
			c.confirm(f.Identifier)
		case TypeReject:
			c.reject(f.Identifier)
		case TypeDisconnect:
			reconnect := f.Reconnect == nil || *f.Reconnect
			return welcomed, &DisconnectError{Reason: f.Reason, Reconnect: reconnect}
		case "":
			if f.Identifier != "" && len(f.Message) > 0 {
				c.dispatch(f.Identifier, f.Message)
			}
		default:
			c.logger.Debug("ignoring cable frame", zap.String("type", f.Type))
		}
	}
}

func (c *Consumer) welcome(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	seen := make(map[Identifier]bool)
	var ids []Identifier
	for _, s := range c.subs {
		if !seen[s.id] {
			seen[s.id] = true
			ids = append(ids, s.id)
		}
	}
	c.mu.Unlock()

	c.logger.Info("cable connected", zap.Int("subscriptions", len(ids)))
	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: bus.KindCableConnected, Payload: c.url})
	}
	for _, id := range ids {
		c.command(conn, CommandSubscribe, id)
	}
}

func (c *Consumer) confirm(id Identifier) {
	c.mu.Lock()
	var handlers []Handler
	for _, s := range c.subs {
		if s.id == id && s.state != subConfirmed {
			s.state = subConfirmed
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h.Connected()
	}
}

func (c *Consumer) reject(id Identifier) {
	c.mu.Lock()
	var handlers []Handler
	kept := c.subs[:0]
	for _, s := range c.subs {
		if s.id == id {
			handlers = append(handlers, s.handler)
			continue
		}
		kept = append(kept, s)
	}
	c.subs = kept
	c.mu.Unlock()

	c.logger.Warn("subscription rejected", zap.String("identifier", string(id)))
	for _, h := range handlers {
		h.Disconnected()
	}
}

func (c *Consumer) dispatch(id Identifier, data json.RawMessage) {
	c.mu.Lock()
	var handlers []Handler
	for _, s := range c.subs {
		if s.id == id {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("frame for unknown subscription", zap.String("identifier", string(id)))
	}
	for _, h := range handlers {
		h.Received(data)
	}
}

// markDown tells every subscription not already told that the transport is down.
func (c *Consumer) markDown() {
	c.mu.Lock()
	var handlers []Handler
	for _, s := range c.subs {
		if s.state != subDown {
			s.state = subDown
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h.Disconnected()
	}
}

func (c *Consumer) drop(conn *websocket.Conn, welcomed bool) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	_ = conn.CloseNow()
	c.markDown()
	if welcomed {
		c.logger.Info("cable disconnected")
		if c.bus != nil {
			c.bus.Publish(bus.Event{Kind: bus.KindCableDisconnected, Payload: c.url})
		}
	}
}
