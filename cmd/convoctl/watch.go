package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/status"
	intsync "github.com/matheus3301/convo/internal/sync"
	"github.com/spf13/cobra"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Print a conversation and follow new messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, d deps) error {
				return watch(ctx, d, id, &threadPrinter{
					out:        cmd.OutOrStdout(),
					json:       opts.json,
					isOutgoing: d.Session.IsOutgoing,
				}, cmd.ErrOrStderr())
			})
		},
	}
}

// watch binds a thread for id exactly as the TUI does and prints every
// message once, in arrival order.
func watch(ctx context.Context, d deps, id int64, p *threadPrinter, errOut io.Writer) error {
	events, unsub := d.Bus.Subscribe("", 128)
	defer unsub()

	t := intsync.NewThread(id)
	h := d.Subs.Acquire(id)
	defer h.Release()
	d.Engine.Bind(ctx, t, h)
	defer d.Engine.Unbind()
	d.Consumer.Start(ctx)

	detail, err := d.Client.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation %d: %w", id, err)
	}
	if err := d.Engine.LoadInitial(t, detail.Messages); err != nil {
		return err
	}
	if !p.json {
		_, _ = fmt.Fprintf(errOut, "-- watching conversation %d with %s (Ctrl-C to stop)\n", id, detail.OtherUser.Name)
	}
	if err := p.flush(t); err != nil {
		return err
	}

	// Bus events may be dropped under load; the ticker catches up.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case evt := <-events:
			if sc, ok := evt.Payload.(status.StatusChange); ok && evt.Kind == bus.KindSubscriptionState && sc.ConversationID == id && !p.json {
				_, _ = fmt.Fprintf(errOut, "-- %s\n", sc.To)
			}
		}
		if err := p.flush(t); err != nil {
			return err
		}
	}
}

type threadPrinter struct {
	out        io.Writer
	json       bool
	isOutgoing func(api.Message) bool
	printed    int
}

// flush prints the messages appended since the last call. Threads only
// ever grow at the end once history is loaded, so a count is enough.
func (p *threadPrinter) flush(t *intsync.Thread) error {
	msgs := t.Messages()
	for _, m := range msgs[min(p.printed, len(msgs)):] {
		if p.json {
			if err := writeJSONLine(p.out, m); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(p.out, messageLine(m, p.isOutgoing(m))); err != nil {
			return err
		}
	}
	p.printed = max(p.printed, len(msgs))
	return nil
}
