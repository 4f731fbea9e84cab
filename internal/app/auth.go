package app

import (
	"context"
	"fmt"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/store"
	"go.uber.org/zap"
)

// Auth signs a profile in and out. The session is updated in place so every
// component holding it sees the new credentials; the store keeps them across runs.
type Auth struct {
	client  *api.Client
	session *session.Session
	db      *store.DB
	logger  *zap.Logger
}

// NewAuth creates an Auth.
func NewAuth(client *api.Client, sess *session.Session, db *store.DB, logger *zap.Logger) *Auth {
	return &Auth{client: client, session: sess, db: db, logger: logger.Named("auth")}
}

// Login exchanges the credentials for a token and saves it for the profile.
func (a *Auth) Login(ctx context.Context, email, password string) (api.User, error) {
	resp, err := a.client.Login(ctx, email, password)
	if err != nil {
		a.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		return api.User{}, err
	}
	prev, err := a.db.LoadCredentials()
	if err != nil {
		return api.User{}, fmt.Errorf("load credentials: %w", err)
	}
	if prev == nil || prev.UserID != resp.User.ID || prev.APIURL != a.client.BaseURL() {
		if err := a.db.ClearDrafts(); err != nil {
			return api.User{}, fmt.Errorf("clear drafts: %w", err)
		}
	}
	a.session.Set(resp.Token, resp.User)
	if err := a.db.SaveCredentials(&store.Credentials{
		Token:     resp.Token,
		UserID:    resp.User.ID,
		UserName:  resp.User.Name,
		UserEmail: resp.User.Email,
		APIURL:    a.client.BaseURL(),
	}); err != nil {
		return resp.User, fmt.Errorf("save credentials: %w", err)
	}
	a.logger.Info("signed in", zap.Int64("user_id", resp.User.ID))
	return resp.User, nil
}

// Logout forgets the saved token and the user's unsent drafts.
func (a *Auth) Logout(_ context.Context) error {
	a.session.Clear()
	if err := a.db.ClearCredentials(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if err := a.db.ClearDrafts(); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	a.logger.Info("signed out")
	return nil
}

// Verify checks the saved token against the server and refreshes the
// cached user. An expired token signs the profile out.
func (a *Auth) Verify(ctx context.Context) (api.User, error) {
	if !a.session.Valid() {
		return api.User{}, ErrSignedOut
	}
	u, err := a.client.CurrentUser(ctx)
	if api.IsUnauthorized(err) {
		_ = a.Logout(ctx)
		return api.User{}, ErrSignedOut
	}
	if err != nil {
		return api.User{}, err
	}
	a.session.Set(a.session.Token(), *u)
	return *u, nil
}

// restoreSession loads the saved login into a session. Credentials saved
// against a different API are ignored.
func restoreSession(db *store.DB, apiURL string, logger *zap.Logger) (*session.Session, error) {
	c, err := db.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if c == nil {
		return session.New("", api.User{}), nil
	}
	if c.APIURL != apiURL {
		logger.Info("ignoring credentials saved for another server", zap.String("saved", c.APIURL), zap.String("api_url", apiURL))
		return session.New("", api.User{}), nil
	}
	return session.New(c.Token, api.User{ID: c.UserID, Name: c.UserName, Email: c.UserEmail}), nil
}
