package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/request"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var rawFlag bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <account> <number>",
	Short: "Show a message as numbered by list",
	Args:  cobra.ExactArgs(2),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the message source")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	number, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid message number %q", args[1])
	}

	s, err := newSession(ctx, args[0])
	if err != nil {
		return err
	}

	defer s.close(context.Background())

	msg, err := s.fetch(ctx, args[0], number)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if rawFlag {
		_, err := out.Write(msg.Literal)
		return err
	}

	format := message.DisplayFormat(s.cfg.DisplayFormat)

	if text := message.DisplayablePart(msg.Structure, format); text != nil {
		body, err := message.RenderText(text, format)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, body)
	}

	for _, leaf := range message.Attachments(msg.Structure, format) {
		header := leaf.Header()
		fmt.Fprintf(out, "[attachment] %s %s %s\n", header.Filename, header.MIMEType(), humanize.Bytes(uint64(len(leaf.Payload()))))
	}

	if !msg.Complete {
		fmt.Fprintln(out, "[message truncated]")
	}

	return nil
}

// fetch downloads the message with the given list number.
func (s *session) fetch(ctx context.Context, account string, number int) (events.MessageAvailable, error) {
	inbox, entries, err := s.recent(ctx, account)
	if err != nil {
		return events.MessageAvailable{}, err
	}

	if number < 1 || number > len(entries) {
		return events.MessageAvailable{}, fmt.Errorf("no message %d, the list has %d", number, len(entries))
	}

	token := entries[number-1].Token

	seen, err := s.await(ctx, func() (string, error) {
		return s.engine.Incoming(account, &request.MessageFetch{
			Folder: inbox,
			Token:  token,
			Cached: true,
		})
	})
	if err != nil {
		return events.MessageAvailable{}, err
	}

	for _, event := range seen {
		if event, ok := event.(events.MessageAvailable); ok && mail.SameMessage(event.Token, token) {
			return event, nil
		}
	}

	return events.MessageAvailable{}, fmt.Errorf("message %d was not downloaded", number)
}
