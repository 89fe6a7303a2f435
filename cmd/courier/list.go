package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/mailbox"
	"github.com/courier-mail/courier/request"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <account>",
	Short: "List the most recent messages of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, args[0])
	if err != nil {
		return err
	}

	defer s.close(context.Background())

	_, entries, err := s.recent(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	for i, entry := range entries {
		from, subject, date := "", "", ""

		if env := entry.Envelope; env != nil {
			if len(env.From) > 0 {
				from = env.From[0].String()
			}

			subject = env.Subject
			date = humanize.Time(env.Date)
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, entry.Flags, from, subject, date, humanize.Bytes(uint64(entry.Size)))
	}

	return w.Flush()
}

// recent lists the newest messages of the account's inbox through its mailbox cache.
func (s *session) recent(ctx context.Context, account string) (*mail.Folder, []mailbox.Entry, error) {
	inbox, err := s.inbox(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	mb, err := s.engine.Mailbox(account, inbox.Path)
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.await(ctx, func() (string, error) {
		return s.engine.Incoming(account, &request.FolderMessagesRecent{Folder: inbox})
	}); err != nil {
		return nil, nil, err
	}

	return inbox, mb.Messages(), nil
}
