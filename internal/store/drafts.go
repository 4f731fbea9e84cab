package store

import (
	"database/sql"
	"time"
)

// SaveDraft keeps unsent text for a conversation. lastErr records why the
// last send attempt failed, empty when the draft was only typed.
func (db *DB) SaveDraft(conversationID int64, body, lastErr string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO drafts (conversation_id, body, last_error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			body = excluded.body,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		conversationID, body, lastErr, now)
	return err
}

// LoadDraft returns the draft for a conversation, or nil if there is none.
func (db *DB) LoadDraft(conversationID int64) (*Draft, error) {
	d := Draft{ConversationID: conversationID}
	err := db.QueryRow(`SELECT body, last_error, updated_at FROM drafts WHERE conversation_id = ?`, conversationID).
		Scan(&d.Body, &d.LastError, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ClearDraft deletes the draft after a successful send.
func (db *DB) ClearDraft(conversationID int64) error {
	_, err := db.Exec(`DELETE FROM drafts WHERE conversation_id = ?`, conversationID)
	return err
}

// ClearDrafts deletes every draft. Drafts belong to whoever was signed in
// when they were written, so they go with the credentials.
func (db *DB) ClearDrafts() error {
	_, err := db.Exec(`DELETE FROM drafts`)
	return err
}

// ListDrafts returns all drafts, most recent first.
func (db *DB) ListDrafts() ([]Draft, error) {
	rows, err := db.Query(`SELECT conversation_id, body, last_error, updated_at FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ConversationID, &d.Body, &d.LastError, &d.UpdatedAt); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
