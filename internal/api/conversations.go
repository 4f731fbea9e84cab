package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListConversations returns every conversation of the current user.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation returns a conversation with its message history.
func (c *Client) GetConversation(ctx context.Context, conversationID int64) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/conversations/%d", conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation opens (or reuses) a conversation with recipientID and returns its id.
func (c *Client) CreateConversation(ctx context.Context, recipientID int64) (int64, error) {
	in := struct {
		RecipientID int64 `json:"recipient_id"`
	}{recipientID}
	var out struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations", in, &out); err != nil {
		return 0, err
	}
	return out.ConversationID, nil
}

// SendMessage posts body to a conversation and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, body string) (Message, error) {
	in := struct {
		Message struct {
			Body string `json:"body"`
		} `json:"message"`
	}{}
	in.Message.Body = body

	var out Message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/messages", conversationID), in, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}
