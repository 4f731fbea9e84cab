package store

import (
	"database/sql"
	"time"
)

// SaveCredentials stores the login for this profile, replacing any previous one.
func (db *DB) SaveCredentials(c *Credentials) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO credentials (id, token, user_id, user_name, user_email, api_url, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			api_url = excluded.api_url,
			updated_at = excluded.updated_at`,
		c.Token, c.UserID, c.UserName, c.UserEmail, c.APIURL, now)
	return err
}

// LoadCredentials returns the saved login, or nil when signed out.
func (db *DB) LoadCredentials() (*Credentials, error) {
	var c Credentials
	err := db.QueryRow(`SELECT token, user_id, user_name, user_email, api_url FROM credentials WHERE id = 1`).
		Scan(&c.Token, &c.UserID, &c.UserName, &c.UserEmail, &c.APIURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClearCredentials removes the saved login.
func (db *DB) ClearCredentials() error {
	_, err := db.Exec(`DELETE FROM credentials`)
	return err
}
