package request

import (
	"context"
	"errors"
	"time"

	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/observability"
	"github.com/courier-mail/courier/reporter"
	"github.com/courier-mail/courier/store"
	"github.com/sirupsen/logrus"
)

// Runner executes requests for one account and publishes their outcome.
type Runner[C Client] struct {
	account string
	publish func(events.Event)
	store   store.Store
	log     *logrus.Entry
}

func NewRunner[C Client](account string, publish func(events.Event), store store.Store) *Runner[C] {
	return &Runner[C]{
		account: account,
		publish: publish,
		store:   store,
		log:     logrus.WithField("pkg", "request").WithField("account", account),
	}
}

// Run executes req on client. The outcome is published as RequestComplete or RequestFailed and also returned.
func (r *Runner[C]) Run(ctx context.Context, id string, client C, req Request[C]) error {
	log := r.log.WithField("request", req.Name()).WithField("id", id)

	h := &Handle[C]{
		Client:     client,
		id:         id,
		account:    r.account,
		deliberate: req.Deliberate(),
		publish:    r.publish,
		store:      r.store,
		log:        log,
	}

	h.ShowStatus(req.InitialStatus())

	log.Debug("Executing request")

	start := time.Now()

	err := req.Execute(ctx, h)

	observability.ObserveRequest(ctx, req.Name(), start, err)

	if err != nil {
		r.fail(ctx, log, id, err)
		return err
	}

	log.WithField("duration", time.Since(start)).Debug("Request complete")

	r.publish(events.RequestComplete{RequestID: id})

	return nil
}

// finish publishes the outcome of a request that ran as part of another one.
func (r *Runner[C]) finish(ctx context.Context, id string, req Request[C], err error) {
	if err != nil {
		r.fail(ctx, r.log.WithField("request", req.Name()).WithField("id", id), id, err)
		return
	}

	r.publish(events.RequestComplete{RequestID: id})
}

// NotifyConnectionFailed fails a request that could not run because its client could not be opened.
func (r *Runner[C]) NotifyConnectionFailed(ctx context.Context, id string, req Request[C], err error) {
	r.fail(ctx, r.log.WithField("request", req.Name()).WithField("id", id), id, err)
}

func (r *Runner[C]) fail(ctx context.Context, log *logrus.Entry, id string, err error) {
	final := mail.IsFinal(err)

	log = log.WithError(err).WithField("final", final)

	if isExpected(err) {
		log.Warn("Request failed")
	} else {
		log.Error("Request failed unexpectedly")

		observability.AddFailure(ctx, observability.FailureRequest)

		reporter.ExceptionWithContext(ctx, err, reporter.Context{
			"account": r.account,
			"request": id,
		})
	}

	r.publish(events.RequestFailed{RequestID: id, Cause: err, Final: final})
}

// isExpected reports whether err is part of normal operation against a server.
func isExpected(err error) bool {
	var (
		transportErr *mail.TransportError
		protoErr     *mail.ProtocolError
		parseErr     *message.ParseError
	)

	switch {
	case errors.As(err, &transportErr), errors.As(err, &protoErr), errors.As(err, &parseErr):
		return true

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true

	default:
		for _, target := range []error{
			mail.ErrStallTimeout,
			mail.ErrNotConnected,
			mail.ErrUnsupported,
			mail.ErrNotLoadable,
			mail.ErrNoSuchFolder,
			ErrNoRecipients,
		} {
			if errors.Is(err, target) {
				return true
			}
		}

		return false
	}
}
