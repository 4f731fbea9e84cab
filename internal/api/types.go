package api

import "time"

// User is an account on the social network.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// AuthResponse is returned by the login endpoint.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Participant is the other side of a two-person conversation.
type Participant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Message is a direct message. IDs are assigned by the server and are
// unique within a conversation.
type Message struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UserID    int64     `json:"user_id"`
	Read      bool      `json:"read"`
	UserName  string    `json:"user_name"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID          int64       `json:"id"`
	OtherUser   Participant `json:"other_user"`
	LastMessage *string     `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Preview returns the last message body, or empty when the conversation has none.
func (c ConversationSummary) Preview() string {
	if c.LastMessage == nil {
		return ""
	}
	return *c.LastMessage
}

// ConversationDetail is a conversation with its message history.
type ConversationDetail struct {
	ID        int64       `json:"id"`
	OtherUser Participant `json:"other_user"`
	Messages  []Message   `json:"messages"`
}
