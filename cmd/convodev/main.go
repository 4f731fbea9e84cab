package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/matheus3301/convo/internal/daemon"
	"github.com/matheus3301/convo/internal/devserver"
	"github.com/matheus3301/convo/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:3000", "listen address")
	seed := flag.Bool("seed", true, "create the demo users and conversation")
	ping := flag.Duration("ping-interval", devserver.DefaultPingInterval, "cable ping interval (at most 3s)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			Addr:         *addr,
			Seed:         *seed,
			PingInterval: *ping,
			LogPath:      filepath.Join(session.BaseDir(), "logs", "convodev.log"),
			LogLevel:     *level,
			Console:      os.Stderr,
		}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger { return &fxevent.ZapLogger{Logger: l.Named("fx")} }),
	)

	app.Run()
}
