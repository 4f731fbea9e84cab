package session

import (
	"sync"

	"github.com/matheus3301/convo/internal/api"
)

// Session carries the signed-in user's bearer token and identity. It is
// created once per process and handed to the components that need it.
type Session struct {
	mu    sync.RWMutex
	token string
	user  api.User
}

// New returns a session holding the given credentials. An empty token
// yields a signed-out session.
func New(token string, user api.User) *Session {
	return &Session{token: token, user: user}
}

// Set replaces the credentials, e.g. after a successful login.
func (s *Session) Set(token string, user api.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
}

// Clear signs the session out.
func (s *Session) Clear() {
	s.Set("", api.User{})
}

// Token returns the bearer token, or empty when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the signed-in user.
func (s *Session) User() api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Valid reports whether the session has a token.
func (s *Session) Valid() bool {
	return s.Token() != ""
}

// IsOutgoing reports whether m was written by the signed-in user.
func (s *Session) IsOutgoing(m api.Message) bool {
	u := s.User()
	return u.ID != 0 && m.UserID == u.ID
}
