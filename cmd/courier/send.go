package main

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/request"
	"github.com/spf13/cobra"
)

var (
	toFlag      []string
	ccFlag      []string
	bccFlag     []string
	subjectFlag string
	htmlFlag    bool
)

var sendCmd = &cobra.Command{
	Use:   "send <account>",
	Short: "Send a message read from standard input",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringSliceVar(&toFlag, "to", nil, "Recipient address")
	sendCmd.Flags().StringSliceVar(&ccFlag, "cc", nil, "Carbon copy address")
	sendCmd.Flags().StringSliceVar(&bccFlag, "bcc", nil, "Blind carbon copy address")
	sendCmd.Flags().StringVarP(&subjectFlag, "subject", "s", "", "Subject")
	sendCmd.Flags().BoolVar(&htmlFlag, "html", false, "Send the body as text/html")
	_ = sendCmd.MarkFlagRequired("to")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	account, err := loadAccount(args[0])
	if err != nil {
		return err
	}

	if account.Email == "" {
		return fmt.Errorf("account %v has no email address", account.Name)
	}

	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return err
	}

	env := &message.Envelope{
		Subject: subjectFlag,
		From:    []message.Address{{Addr: account.Email}},
		Date:    time.Now(),
	}

	for _, list := range []struct {
		flag []string
		dst  *[]message.Address
	}{{toFlag, &env.To}, {ccFlag, &env.Cc}, {bccFlag, &env.Bcc}} {
		for _, raw := range list.flag {
			addr, err := mail.ParseAddress(raw)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", raw, err)
			}

			*list.dst = append(*list.dst, message.Address{Name: addr.Name, Addr: addr.Address})
		}
	}

	subtype := "plain"
	if htmlFlag {
		subtype = "html"
	}

	s, err := newSession(ctx, account.Name)
	if err != nil {
		return err
	}

	defer s.close(context.Background())

	_, err = s.await(ctx, func() (string, error) {
		return s.engine.Outgoing(account.Name, &request.Send{Envelope: env, Root: message.NewText(subtype, "utf-8", string(body))})
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Sent to %d recipients\n", len(env.Recipients()))

	return nil
}
