package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

var checkCmd = &cobra.Command{
	Use:   "check [account...]",
	Short: "Show message counts of every account",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx, args...)
	if err != nil {
		return err
	}

	defer s.close(context.Background())

	var (
		mu    sync.Mutex
		lines = make(map[string]string)
	)

	grp, ctx := errgroup.WithContext(ctx)

	for _, account := range s.cfg.Accounts {
		if account.POP == nil || (len(args) > 0 && !slices.Contains(args, account.Name)) {
			continue
		}

		name := account.Name

		grp.Go(func() error {
			inbox, err := s.inbox(ctx, name)
			if err != nil {
				return fmt.Errorf("%v: %w", name, err)
			}

			mu.Lock()
			defer mu.Unlock()

			lines[name] = fmt.Sprintf("%v: %d messages", name, inbox.MsgCount)

			return nil
		})
	}

	err = grp.Wait()

	for _, account := range s.cfg.Accounts {
		if line, ok := lines[account.Name]; ok {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}

	return err
}
