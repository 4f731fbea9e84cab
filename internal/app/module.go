package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/logging"
	"github.com/matheus3301/convo/internal/outbox"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/store"
	"github.com/matheus3301/convo/internal/subscription"
	intsync "github.com/matheus3301/convo/internal/sync"
	"github.com/matheus3301/convo/internal/tui/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrSignedOut is returned when an operation needs a saved login.
var ErrSignedOut = errors.New("not signed in: run `convoctl login` first")

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// Console mirrors logs in console format. Nil for the TUI.
	Console io.Writer
	// DBPath overrides the profile database path; empty uses the default.
	DBPath string
	// LogPath overrides the log file path; empty uses the default.
	LogPath string
}

// Module returns the fx module for a client process, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("convo",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideStore,
			provideSession,
			provideAPIClient,
			bus.New,
			provideConsumer,
			provideSubscriptions,
			provideEngine,
			provideCoordinator,
			provideViewModel,
			NewAuth,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	path := p.LogPath
	if path == "" {
		path = session.LogPath(p.Profile)
	}
	return logging.New(logging.Options{
		Path:    path,
		Profile: p.Profile,
		Level:   p.Config.LogLevel,
		Console: p.Console,
	})
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.DBPath
	if dbPath == "" {
		dbPath = session.DBPath(p.Profile)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSession(p Params, db *store.DB, logger *zap.Logger) (*session.Session, error) {
	return restoreSession(db, strings.TrimRight(p.Config.APIURL, "/"), logger)
}

func provideAPIClient(p Params, sess *session.Session, logger *zap.Logger) (*api.Client, error) {
	return api.New(p.Config.APIURL, sess, api.WithLogger(logger.Named("api")))
}

func provideConsumer(p Params, sess *session.Session, b *bus.Bus, logger *zap.Logger) (*cable.Consumer, error) {
	c, err := cable.NewConsumer(p.Config.CableURL, sess, b, logger)
	if err != nil {
		return nil, fmt.Errorf("cable: %w", err)
	}
	return c, nil
}

func provideSubscriptions(c *cable.Consumer, b *bus.Bus, logger *zap.Logger) *subscription.Manager {
	return subscription.NewManager(c, b, logger)
}

func provideEngine(b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(b, logger)
}

func provideCoordinator(p Params, client *api.Client, engine *intsync.Engine, sess *session.Session, b *bus.Bus, logger *zap.Logger) *outbox.Coordinator {
	return outbox.NewCoordinator(client, engine, sess, b, logger, outbox.WithOptimistic(p.Config.OptimisticSend))
}

func provideViewModel(client *api.Client, coord *outbox.Coordinator, subs *subscription.Manager, engine *intsync.Engine, sess *session.Session, db *store.DB, b *bus.Bus, logger *zap.Logger) *model.ViewModel {
	return model.NewViewModel(model.Deps{
		Backend: client,
		Sender:  coord,
		Subs:    subs,
		Engine:  engine,
		Session: sess,
		Drafts:  db,
		Bus:     b,
		Logger:  logger,
	})
}

// registerLifecycle tears components down in reverse dependency order. The
// cable connection is started by whoever needs live updates, once signed in.
func registerLifecycle(lc fx.Lifecycle, p Params, consumer *cable.Consumer, subs *subscription.Manager, engine *intsync.Engine, db *store.DB, sess *session.Session, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("client starting",
				zap.String("api_url", p.Config.APIURL),
				zap.String("cable_url", p.Config.CableURL),
				zap.Bool("signed_in", sess.Valid()),
				zap.Bool("optimistic_send", p.Config.OptimisticSend),
			)
			return nil
		},
		OnStop: func(_ context.Context) error {
			subs.ReleaseAll()
			engine.Stop()
			consumer.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
