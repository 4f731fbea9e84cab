package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/cable"
	"go.uber.org/zap"
)

const (
	// ChannelName is the only channel the server accepts subscriptions for.
	ChannelName = "ConversationChannel"

	DefaultPingInterval = 3 * time.Second
	// MaxPingInterval bounds the ping interval. Clients recycle a socket
	// that stays silent for two default intervals.
	MaxPingInterval = DefaultPingInterval
	readLimit           = 1 << 20
	userKey             = "user"
)

// Server serves /api/v1 and /cable from a Store.
type Server struct {
	store        *Store
	hub          *hub
	logger       *zap.Logger
	pingInterval time.Duration
	engine       *gin.Engine
	upgrader     websocket.Upgrader

	failSends atomic.Int32
}

// Option configures a Server.
type Option func(*Server)

// WithPingInterval sets how often cable connections are pinged. Values
// outside (0, MaxPingInterval] are clamped.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = clampPing(d) }
}

func clampPing(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultPingInterval
	}
	return min(d, MaxPingInterval)
}

// New builds a server around store.
func New(store *Store, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:        store,
		hub:          newHub(),
		logger:       logger.Named("devserver"),
		pingInterval: DefaultPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    cable.Subprotocols[:1],
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", s.login)
	authed := v1.Group("", s.requireAuth())
	authed.GET("/users/me", s.me)
	authed.GET("/users", s.listUsers)
	authed.GET("/conversations", s.listConversations)
	authed.POST("/conversations", s.createConversation)
	authed.GET("/conversations/:id", s.getConversation)
	authed.POST("/conversations/:id/messages", s.createMessage)

	r.GET("/cable", s.serveCable)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// PingInterval returns how often cable connections are pinged.
func (s *Server) PingInterval() time.Duration { return s.pingInterval }

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// FailSends makes message creation answer with status code until reset with 0.
func (s *Server) FailSends(code int) { s.failSends.Store(int32(code)) }

// Subscribers returns the number of live cable subscriptions to conversationID.
func (s *Server) Subscribers(conversationID int64) int {
	return s.hub.subscribers(conversationID)
}

// Broadcast pushes msg to every subscriber of conversationID.
func (s *Server) Broadcast(conversationID int64, msg api.Message) int {
	return s.hub.broadcast(conversationID, msg)
}

// DropConnections closes every cable socket without a disconnect frame.
func (s *Server) DropConnections() {
	s.hub.closeAll(websocket.CloseGoingAway, "dropped")
}

// Close shuts down every cable connection.
func (s *Server) Close() {
	s.hub.closeAll(websocket.CloseGoingAway, "server shutdown")
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := s.store.UserByToken(bearer(c.Request))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) api.User {
	return c.MustGet(userKey).(api.User)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{err.Error()}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) login(c *gin.Context) {
	var in struct {
		User struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"user"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	tok, u, err := s.store.Login(in.User.Email, in.User.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, api.AuthResponse{User: u, Token: tok})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Users())
}

func (s *Server) listConversations(c *gin.Context) {
	out := s.store.ListConversations(currentUser(c).ID)
	if out == nil {
		out = []api.ConversationSummary{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createConversation(c *gin.Context) {
	var in struct {
		RecipientID int64 `json:"recipient_id"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id, err := s.store.CreateConversation(currentUser(c).ID, in.RecipientID)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
}

func (s *Server) getConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	conv, err := s.store.Conversation(currentUser(c).ID, id)
	if err != nil {
		storeError(c, err)
		return
	}
	if conv.Messages == nil {
		conv.Messages = []api.Message{}
	}
	c.JSON(http.StatusOK, conv)
}

// createMessage stores the message and broadcasts it before replying, so
// the sender's own subscription usually sees the push before the response.
func (s *Server) createMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if code := s.failSends.Load(); code != 0 {
		c.JSON(int(code), gin.H{"error": "send failure injected"})
		return
	}
	var in struct {
		Message struct {
			Body string `json:"body"`
		} `json:"message"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := s.store.AddMessage(currentUser(c).ID, id, in.Message.Body)
	if err != nil {
		storeError(c, err)
		return
	}
	n := s.hub.broadcast(id, msg)
	s.logger.Debug("message broadcast", zap.Int64("conversation_id", id), zap.Int64("message_id", msg.ID), zap.Int("subscribers", n))
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) serveCable(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearer(c.Request)
	}
	user, authed := s.store.UserByToken(token)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := newConnection(user.ID, ws)
	conn.start(s.pingInterval)

	if !authed {
		no := false
		_ = conn.frame(cable.ServerFrame{Type: cable.TypeDisconnect, Reason: "unauthorized", Reconnect: &no})
		time.AfterFunc(100*time.Millisecond, func() { conn.shutdown(websocket.ClosePolicyViolation, "unauthorized") })
		return
	}

	s.hub.attach(conn)
	defer func() {
		s.hub.detach(conn)
		conn.shutdown(websocket.CloseNormalClosure, "session closed")
	}()
	log := s.logger.With(zap.String("conn", conn.id), zap.Int64("user_id", user.ID))
	log.Debug("cable connected")

	_ = conn.frame(cable.ServerFrame{Type: cable.TypeWelcome})

	ws.SetReadLimit(readLimit)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Debug("cable closed", zap.Error(err))
			return
		}
		var cmd cable.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Warn("bad cable command", zap.Error(err))
			continue
		}
		switch cmd.Command {
		case cable.CommandSubscribe:
			s.subscribe(conn, user, cmd.Identifier, log)
		case cable.CommandUnsub:
			if id, ok := conversationOf(cmd.Identifier); ok {
				s.hub.leave(id, conn)
			}
		default:
			log.Debug("ignoring cable command", zap.String("command", cmd.Command))
		}
	}
}

func (s *Server) subscribe(conn *connection, user api.User, id cable.Identifier, log *zap.Logger) {
	convID, ok := conversationOf(id)
	if !ok || !s.store.IsMember(user.ID, convID) {
		log.Debug("subscription rejected", zap.String("identifier", string(id)))
		_ = conn.frame(cable.ServerFrame{Type: cable.TypeReject, Identifier: id})
		return
	}
	if !s.hub.join(convID, id, conn) {
		return
	}
	_ = conn.frame(cable.ServerFrame{Type: cable.TypeConfirm, Identifier: id})
}

func conversationOf(id cable.Identifier) (int64, bool) {
	params, err := id.Params()
	if err != nil || params["channel"] != ChannelName {
		return 0, false
	}
	n, err := strconv.ParseInt(params["conversation_id"], 10, 64)
	return n, err == nil
}
