package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newConversationsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List, read and start conversations",
	}
	cmd.AddCommand(
		newConversationsListCmd(opts),
		newConversationsShowCmd(opts),
		newConversationsStartCmd(opts),
	)
	return cmd
}

func newConversationsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, d deps) error {
				convs, err := d.Client.ListConversations(ctx)
				if err != nil {
					return fmt.Errorf("list conversations: %w", err)
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), convs)
				}
				if len(convs) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
					return nil
				}
				renderTable(cmd.OutOrStdout(), []string{"ID", "With", "Last message", "Unread", "Updated"}, conversationRows(convs))
				return nil
			})
		},
	}
}

func newConversationsShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, d deps) error {
				detail, err := d.Client.GetConversation(ctx, id)
				if err != nil {
					return fmt.Errorf("load conversation %d: %w", id, err)
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), detail)
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Conversation %d with %s\n", detail.ID, detail.OtherUser.Name)
				if len(detail.Messages) == 0 {
					_, _ = fmt.Fprintln(out, "No messages yet.")
					return nil
				}
				renderTable(out, []string{"ID", "From", "Sent", "Message", "Read"}, messageRows(detail.Messages, d.Session.IsOutgoing))
				return nil
			})
		},
	}
}

func newConversationsStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start <user-id>",
		Short: "Start (or find) the conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, d deps) error {
				id, err := d.Client.CreateConversation(ctx, userID)
				if err != nil {
					return fmt.Errorf("start conversation: %w", err)
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), map[string]int64{"id": id})
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Conversation %d\n", id)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", s)
	}
	return id, nil
}
