package daemon

import (
	"context"
	"io"
	"time"

	"github.com/matheus3301/convo/internal/devserver"
	"github.com/matheus3301/convo/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params configures the development server process.
type Params struct {
	Addr         string
	Seed         bool
	PingInterval time.Duration
	LogPath      string
	LogLevel     string
	Console      io.Writer
}

// Module returns the fx module for convodev, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("convodev",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideStore,
			provideDevServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    p.LogPath,
		Profile: "convodev",
		Level:   p.LogLevel,
		Console: p.Console,
	})
}

func provideStore(p Params, logger *zap.Logger) *devserver.Store {
	s := devserver.NewStore()
	if p.Seed {
		s.Seed()
		logger.Info("demo data seeded", zap.Int("users", len(s.Users())))
	}
	return s
}

func provideDevServer(p Params, s *devserver.Store, logger *zap.Logger) *devserver.Server {
	var opts []devserver.Option
	if p.PingInterval > devserver.MaxPingInterval {
		logger.Warn("ping interval clamped",
			zap.Duration("requested", p.PingInterval),
			zap.Duration("max", devserver.MaxPingInterval))
	}
	if p.PingInterval > 0 {
		opts = append(opts, devserver.WithPingInterval(p.PingInterval))
	}
	return devserver.New(s, logger, opts...)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			logger.Info("convodev stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
