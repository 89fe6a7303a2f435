package main

import (
	"context"
	"fmt"

	"github.com/courier-mail/courier/config"
	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/request"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <account> <dir>",
	Short: "Copy the most recent messages of an account into an mbox folder",
	Long: `export downloads the most recent messages of the account and appends them,
with their flags, to INBOX.mbox in the given directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

// localAccount names the mbox account receiving exported messages.
const localAccount = "local"

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, args[0])
	if err != nil {
		return err
	}

	defer s.close(context.Background())

	local := connector.NewMbox(args[1])

	if err := s.engine.AddAccount(ctx, localAccount, nil, local, nil); err != nil {
		return err
	}

	target, err := s.inbox(ctx, localAccount)
	if err != nil {
		return err
	}

	inbox, entries, err := s.recent(ctx, args[0])
	if err != nil {
		return err
	}

	exported := 0

	for _, entry := range entries {
		seen, err := s.await(ctx, func() (string, error) {
			return s.engine.Incoming(args[0], &request.MessageFetch{Folder: inbox, Token: entry.Token, Cached: true})
		})
		if err != nil {
			return err
		}

		literal := availableLiteral(seen, entry.Token)
		if literal == nil {
			continue
		}

		if _, err := s.await(ctx, func() (string, error) {
			return s.engine.Incoming(localAccount, &request.Append{Folder: target, Literal: literal, Flags: entry.Flags})
		}); err != nil {
			return err
		}

		exported++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d of %d messages to %v\n", exported, len(entries), args[1])

	return nil
}

func availableLiteral(seen []events.Event, token mail.Token) []byte {
	for _, event := range seen {
		if event, ok := event.(events.MessageAvailable); ok && mail.SameMessage(event.Token, token) {
			return event.Literal
		}
	}

	return nil
}

func loadAccount(name string) (config.Account, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return config.Account{}, err
	}

	account, ok := cfg.Account(name)
	if !ok {
		return config.Account{}, fmt.Errorf("no account named %v", name)
	}

	return account, nil
}
