package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/app"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/outbox"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/subscription"
	intsync "github.com/matheus3301/convo/internal/sync"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// options holds the persistent flags.
type options struct {
	profile string
	json    bool
	verbose bool

	cfg *config.Config
}

// deps are the client components a command may use.
type deps struct {
	fx.In

	Auth        *app.Auth
	Session     *session.Session
	Client      *api.Client
	Coordinator *outbox.Coordinator
	Subs        *subscription.Manager
	Engine      *intsync.Engine
	Consumer    *cable.Consumer
	Bus         *bus.Bus
	Logger      *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "convoctl",
		Short:         "Scriptable direct-message client",
		Long:          `convoctl signs in, lists and reads conversations, sends messages and follows a conversation live.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(session.ConfigPath(), session.EnvPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			opts.profile = session.Resolve(opts.profile, cfg)
			return session.ValidateName(opts.profile)
		},
	}
	root.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "mirror logs to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newConversationsCmd(opts),
		newSendCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// withClient builds the client components for the profile, runs fn and
// tears everything down again.
func withClient(cmd *cobra.Command, opts *options, fn func(ctx context.Context, d deps) error) error {
	var console io.Writer
	if opts.verbose {
		console = os.Stderr
	}

	var d deps
	fxApp := fx.New(
		app.Module(app.Params{Profile: opts.profile, Config: opts.cfg, Console: console}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger { return &fxevent.ZapLogger{Logger: l.Named("fx")} }),
		fx.Invoke(func(in deps) { d = in }),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}()

	return fn(cmd.Context(), d)
}

// withSession is withClient for commands that need a saved login.
func withSession(cmd *cobra.Command, opts *options, fn func(ctx context.Context, d deps) error) error {
	return withClient(cmd, opts, func(ctx context.Context, d deps) error {
		if !d.Session.Valid() {
			return app.ErrSignedOut
		}
		return fn(ctx, d)
	})
}
