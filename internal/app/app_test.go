package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/devserver"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/store"
	"github.com/matheus3301/convo/internal/tui/model"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type fixture struct {
	srv *devserver.Server
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("CONVO_HOME", t.TempDir())

	ds := devserver.NewStore()
	ds.Seed()
	srv := devserver.New(ds, zap.NewNop())
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})

	cfg := config.Default()
	cfg.APIURL = hs.URL + "/api/v1"
	cfg.CableURL = "ws" + strings.TrimPrefix(hs.URL, "http") + "/cable"
	return &fixture{srv: srv, cfg: cfg}
}

type components struct {
	Auth     *Auth
	Session  *session.Session
	DB       *store.DB
	VM       *model.ViewModel
	Consumer *cable.Consumer
}

func (f *fixture) start(t *testing.T) (*components, *fxtest.App) {
	t.Helper()
	var c components
	app := fxtest.New(t,
		Module(Params{Profile: "test", Config: f.cfg}),
		fx.NopLogger,
		fx.Populate(&c.Auth, &c.Session, &c.DB, &c.VM, &c.Consumer),
	)
	app.RequireStart()
	return &c, app
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestLoginPersistsAcrossRuns(t *testing.T) {
	f := newFixture(t)

	c, app := f.start(t)
	if c.Session.Valid() {
		t.Fatal("fresh profile is signed in")
	}
	user, err := c.Auth.Login(context.Background(), "alice@example.com", "password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Name != "Alice" || !c.Session.Valid() {
		t.Errorf("after Login: user=%+v valid=%v", user, c.Session.Valid())
	}
	app.RequireStop()

	c, app = f.start(t)
	defer app.RequireStop()
	if !c.Session.Valid() || c.Session.User().ID != user.ID {
		t.Errorf("restored session = %+v", c.Session.User())
	}
	if _, err := c.Auth.Verify(context.Background()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	defer app.RequireStop()

	_, err := c.Auth.Login(context.Background(), "alice@example.com", "nope")
	if !api.IsUnauthorized(err) {
		t.Errorf("Login() error = %v, want 401", err)
	}
	if c.Session.Valid() {
		t.Error("session valid after failed login")
	}
}

func TestLogoutClearsCredentials(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	defer app.RequireStop()

	if _, err := c.Auth.Login(context.Background(), "alice@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if err := c.Auth.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Session.Valid() {
		t.Error("session valid after Logout()")
	}
	saved, err := c.DB.LoadCredentials()
	if err != nil || saved != nil {
		t.Errorf("LoadCredentials() = %+v, %v", saved, err)
	}
	if _, err := c.Auth.Verify(context.Background()); !errors.Is(err, ErrSignedOut) {
		t.Errorf("Verify() error = %v, want ErrSignedOut", err)
	}
}

func TestCredentialsForOtherServerIgnored(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	if err := c.DB.SaveCredentials(&store.Credentials{Token: "t", UserID: 1, APIURL: "https://elsewhere.example/api/v1"}); err != nil {
		t.Fatal(err)
	}
	app.RequireStop()

	c, app = f.start(t)
	defer app.RequireStop()
	if c.Session.Valid() {
		t.Error("session restored from another server's credentials")
	}
}

func TestModuleWiresLiveConversation(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	defer app.RequireStop()

	if _, err := c.Auth.Login(context.Background(), "alice@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	c.Consumer.Start(context.Background())
	c.VM.Start(context.Background())
	defer c.VM.Stop()

	c.VM.OpenConversation(context.Background(), 1)
	waitFor(t, "history", func() bool { return !c.VM.Loading() && len(c.VM.Messages()) == 2 })
	waitFor(t, "subscription", func() bool { return c.VM.SubscriptionState() == status.Connected })

	if err := c.VM.Submit(context.Background(), "wired"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, "sent message", func() bool { return len(c.VM.Messages()) == 3 })
	time.Sleep(100 * time.Millisecond)
	if n := len(c.VM.Messages()); n != 3 {
		t.Errorf("messages = %d after push, want 3", n)
	}
}

func TestDraftsDoNotOutliveTheirUser(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	defer app.RequireStop()
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "alice@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if err := c.DB.SaveDraft(1, "from alice", "network error"); err != nil {
		t.Fatal(err)
	}
	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Auth.Login(ctx, "bob@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if d, err := c.DB.LoadDraft(1); err != nil || d != nil {
		t.Errorf("LoadDraft(1) after user change = %+v, %v; want nil", d, err)
	}
}

func TestLoginKeepsDraftsOfSameUser(t *testing.T) {
	f := newFixture(t)
	c, app := f.start(t)
	defer app.RequireStop()
	ctx := context.Background()

	if _, err := c.Auth.Login(ctx, "alice@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if err := c.DB.SaveDraft(1, "still mine", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Auth.Login(ctx, "alice@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if d, _ := c.DB.LoadDraft(1); d == nil || d.Body != "still mine" {
		t.Errorf("LoadDraft(1) after re-login = %+v", d)
	}

	// Switching user without logging out still drops the drafts.
	if _, err := c.Auth.Login(ctx, "bob@example.com", "password"); err != nil {
		t.Fatal(err)
	}
	if d, _ := c.DB.LoadDraft(1); d != nil {
		t.Errorf("LoadDraft(1) after switching user = %+v", d)
	}
}
