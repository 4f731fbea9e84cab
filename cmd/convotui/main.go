package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/convo/internal/app"
	"github.com/matheus3301/convo/internal/cable"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/lock"
	"github.com/matheus3301/convo/internal/session"
	"github.com/matheus3301/convo/internal/tui"
	"github.com/matheus3301/convo/internal/tui/model"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	if err := run(*profileFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(profileFlag string) error {
	cfg, err := config.LoadOrDefault(session.ConfigPath(), session.EnvPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	profile := session.Resolve(profileFlag, cfg)
	if err := session.ValidateName(profile); err != nil {
		return err
	}

	lk, err := lock.Acquire(session.Dir(profile), "convotui")
	if err != nil {
		return err
	}
	defer func() { _ = lk.Release() }()

	var (
		vm       *model.ViewModel
		auth     *app.Auth
		consumer *cable.Consumer
		sess     *session.Session
	)
	fxApp := fx.New(
		app.Module(app.Params{Profile: profile, Config: cfg}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger { return &fxevent.ZapLogger{Logger: l.Named("fx")} }),
		fx.Populate(&vm, &auth, &consumer, &sess),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}()

	signedIn := sess.Valid()
	if signedIn {
		verifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Network errors keep the saved login; only a rejected token signs out.
		if _, err := auth.Verify(verifyCtx); errors.Is(err, app.ErrSignedOut) {
			signedIn = false
		}
		cancel()
	}

	return tui.NewApp(vm, auth, consumer, tui.Options{
		Profile:  profile,
		SignedIn: signedIn,
	}).Run()
}
