package main

import (
	"context"
	"fmt"

	"github.com/courier-mail/courier"
	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/config"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/request"
	"github.com/sirupsen/logrus"
)

// session is an engine with the configured accounts loaded.
type session struct {
	cfg    *config.Config
	engine *courier.Engine
}

func newSession(ctx context.Context, accounts ...string) (*session, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	opts := []courier.Option{
		courier.WithConfig(cfg),
		courier.WithPanicHandler(async.LogPanicHandler{Name: "courier"}),
		courier.WithLogger(logrus.WithField("pkg", "cmd")),
	}

	if dataDirFlag != "" {
		opts = append(opts, courier.WithDataDir(dataDirFlag))
	}

	engine, err := courier.New(opts...)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		for _, account := range cfg.Accounts {
			accounts = append(accounts, account.Name)
		}
	}

	for _, name := range accounts {
		if err := engine.AddConfiguredAccount(ctx, name, []byte(passphraseFlag)); err != nil {
			_ = engine.Close(ctx)
			return nil, err
		}
	}

	return &session{cfg: cfg, engine: engine}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.engine.Close(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to close engine")
	}
}

// await submits a request and blocks until it completes. It returns the events published meanwhile.
func (s *session) await(ctx context.Context, submit func() (string, error)) ([]events.Event, error) {
	eventCh := s.engine.AddWatcher()

	id, err := submit()
	if err != nil {
		return nil, err
	}

	var seen []events.Event

	for {
		select {
		case <-ctx.Done():
			return seen, ctx.Err()

		case event, ok := <-eventCh:
			if !ok {
				return seen, courier.ErrEngineClosed
			}

			switch event := event.(type) {
			case events.RequestComplete:
				if event.RequestID == id {
					return seen, nil
				}

			case events.RequestFailed:
				if event.RequestID == id {
					return seen, event.Cause
				}

			case events.RequestStatus:
				if event.RequestID == id {
					logrus.WithField("progress", event.Progress).Info(event.Message)
				}

			default:
				seen = append(seen, event)
			}
		}
	}
}

// inbox refreshes the folder list of the account and returns its inbox with current counts.
func (s *session) inbox(ctx context.Context, account string) (*mail.Folder, error) {
	seen, err := s.await(ctx, func() (string, error) {
		return s.engine.Incoming(account, &request.FolderRefresh{})
	})
	if err != nil {
		return nil, err
	}

	for _, event := range seen {
		if event, ok := event.(events.FolderStatusChanged); ok && event.Account == account && event.Folder.Path == mail.Inbox {
			return event.Folder, nil
		}
	}

	return nil, fmt.Errorf("account %v has no inbox", account)
}
