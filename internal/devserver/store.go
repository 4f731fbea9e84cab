// Package devserver is an in-memory backend speaking the same REST and
// ActionCable protocol as the production service. It backs convodev and
// the integration tests.
package devserver

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/convo/internal/api"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("invalid email or password")
)

type account struct {
	api.User
	password string
}

type conversation struct {
	id        int64
	members   [2]int64
	messages  []api.Message
	updatedAt time.Time
}

func (c *conversation) has(userID int64) bool {
	return c.members[0] == userID || c.members[1] == userID
}

func (c *conversation) other(userID int64) int64 {
	if c.members[0] == userID {
		return c.members[1]
	}
	return c.members[0]
}

// Store holds users, tokens, conversations and messages in memory.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextUser int64
	nextConv int64
	nextMsg  int64
	users    map[int64]*account
	byEmail  map[string]*account
	tokens   map[string]int64
	convs    map[int64]*conversation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		users:   make(map[int64]*account),
		byEmail: make(map[string]*account),
		tokens:  make(map[string]int64),
		convs:   make(map[int64]*conversation),
	}
}

// Seed adds the demo accounts (password "password") and one conversation
// between the first two.
func (s *Store) Seed() {
	alice := s.AddUser("Alice", "alice@example.com", "password")
	bob := s.AddUser("Bob", "bob@example.com", "password")
	s.AddUser("Carol", "carol@example.com", "password")

	id, _ := s.CreateConversation(alice.ID, bob.ID)
	_, _ = s.AddMessage(bob.ID, id, "hey, are you around?")
	_, _ = s.AddMessage(alice.ID, id, "yes! what's up")
}

// AddUser creates an account.
func (s *Store) AddUser(name, email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUser++
	now := s.now()
	a := &account{
		User:     api.User{ID: s.nextUser, Name: name, Email: strings.ToLower(email), CreatedAt: now, UpdatedAt: now},
		password: password,
	}
	s.users[a.ID] = a
	s.byEmail[a.Email] = a
	return a.User
}

// Users returns every account ordered by id.
func (s *Store) Users() []api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.User, 0, len(s.users))
	for _, a := range s.users {
		out = append(out, a.User)
	}
	slices.SortFunc(out, func(a, b api.User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Login checks credentials and issues a new token.
func (s *Store) Login(email, password string) (string, api.User, error) {
	s.mu.Lock()
	a, ok := s.byEmail[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok || a.password != password {
		return "", api.User{}, ErrUnauthorized
	}
	return s.IssueToken(a.ID), a.User, nil
}

// IssueToken returns a fresh bearer token for userID.
func (s *Store) IssueToken(userID int64) string {
	tok := uuid.NewString()
	s.mu.Lock()
	s.tokens[tok] = userID
	s.mu.Unlock()
	return tok
}

// UserByToken resolves a bearer token.
func (s *Store) UserByToken(token string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return api.User{}, false
	}
	return s.users[id].User, true
}

// IsMember reports whether userID takes part in conversationID.
func (s *Store) IsMember(userID, conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	return ok && c.has(userID)
}

// ListConversations returns userID's conversations, most recently active first.
func (s *Store) ListConversations(userID int64) []api.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []api.ConversationSummary
	for _, c := range s.convs {
		if !c.has(userID) {
			continue
		}
		other := s.users[c.other(userID)]
		sum := api.ConversationSummary{
			ID:        c.id,
			OtherUser: api.Participant{ID: other.ID, Name: other.Name},
			UpdatedAt: c.updatedAt,
		}
		if n := len(c.messages); n > 0 {
			last := c.messages[n-1].Body
			sum.LastMessage = &last
		}
		for _, m := range c.messages {
			if m.UserID != userID && !m.Read {
				sum.UnreadCount++
			}
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b api.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// Conversation returns the history of conversationID as seen by userID and
// marks the other side's messages read.
func (s *Store) Conversation(userID, conversationID int64) (api.ConversationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return api.ConversationDetail{}, ErrNotFound
	}
	if !c.has(userID) {
		return api.ConversationDetail{}, ErrForbidden
	}
	for i := range c.messages {
		if c.messages[i].UserID != userID {
			c.messages[i].Read = true
		}
	}
	other := s.users[c.other(userID)]
	return api.ConversationDetail{
		ID:        c.id,
		OtherUser: api.Participant{ID: other.ID, Name: other.Name},
		Messages:  slices.Clone(c.messages),
	}, nil
}

// CreateConversation returns the conversation between userID and
// recipientID, creating it if needed.
func (s *Store) CreateConversation(userID, recipientID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == recipientID {
		return 0, ErrInvalid
	}
	if _, ok := s.users[recipientID]; !ok {
		return 0, ErrNotFound
	}
	for _, c := range s.convs {
		if c.has(userID) && c.has(recipientID) {
			return c.id, nil
		}
	}
	s.nextConv++
	s.convs[s.nextConv] = &conversation{
		id:        s.nextConv,
		members:   [2]int64{userID, recipientID},
		updatedAt: s.now(),
	}
	return s.nextConv, nil
}

// AddMessage stores a message from userID.
func (s *Store) AddMessage(userID, conversationID int64, body string) (api.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[conversationID]
	if !ok {
		return api.Message{}, ErrNotFound
	}
	if !c.has(userID) {
		return api.Message{}, ErrForbidden
	}
	if strings.TrimSpace(body) == "" {
		return api.Message{}, ErrInvalid
	}
	s.nextMsg++
	m := api.Message{
		ID:        s.nextMsg,
		Body:      body,
		CreatedAt: s.now(),
		UserID:    userID,
		UserName:  s.users[userID].Name,
	}
	c.messages = append(c.messages, m)
	c.updatedAt = m.CreatedAt
	return m, nil
}
