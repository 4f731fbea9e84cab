package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/convo/internal/outbox"
	"github.com/spf13/cobra"
)

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <body...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			body := strings.Join(args[1:], " ")
			return withSession(cmd, opts, func(ctx context.Context, d deps) error {
				msg, err := d.Coordinator.Send(ctx, id, body)
				if errors.Is(err, outbox.ErrEmptyBody) {
					return errors.New("message is empty")
				}
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), msg)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d\n", msg.ID)
				return nil
			})
		},
	}
}
