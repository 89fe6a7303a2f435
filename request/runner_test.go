package request

import (
	"context"
	"errors"
	"testing"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/reporter"
	"github.com/courier-mail/courier/reporter/mock_reporter"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

type funcRequest struct {
	Origin

	fn func(ctx context.Context, h *Handle[connector.Incoming]) error
}

func (req *funcRequest) Name() string {
	return "func"
}

func (req *funcRequest) InitialStatus() string {
	return "Working"
}

func (req *funcRequest) Execute(ctx context.Context, h *Handle[connector.Incoming]) error {
	return req.fn(ctx, h)
}

func TestRunnerComplete(t *testing.T) {
	runner, client, rec, _ := newTestRunner(t)

	require.NoError(t, runner.Run(context.Background(), "1", client, &funcRequest{
		fn: func(ctx context.Context, h *Handle[connector.Incoming]) error {
			h.ShowProgress("Halfway", 50)
			return nil
		},
	}))

	require.Equal(t, []events.Event{
		events.RequestStatus{RequestID: "1", Message: "Working", Progress: -1},
		events.RequestStatus{RequestID: "1", Message: "Halfway", Progress: 50},
		events.RequestComplete{RequestID: "1"},
	}, rec.all())
}

func TestRunnerExpectedFailureIsNotReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := reporter.NewContextWithReporter(context.Background(), mock_reporter.NewMockReporter(ctrl))

	runner, client, rec, _ := newTestRunner(t)

	for _, tc := range []struct {
		err   error
		final bool
	}{
		{err: &mail.ProtocolError{Command: "RETR", Message: "no such message", Fatal: true}, final: true},
		{err: &mail.AuthError{Message: "invalid password", Recoverable: true}, final: false},
		{err: &mail.TransportError{Op: "receive", Err: errors.New("reset")}, final: false},
		{err: mail.ErrStallTimeout, final: false},
	} {
		err := runner.Run(ctx, "1", client, &funcRequest{
			fn: func(context.Context, *Handle[connector.Incoming]) error { return tc.err },
		})
		require.ErrorIs(t, err, tc.err)

		failed := eventsOf[events.RequestFailed](rec)
		require.Equal(t, events.RequestFailed{RequestID: "1", Cause: tc.err, Final: tc.final}, failed[len(failed)-1])
	}
}

func TestRunnerUnexpectedFailureIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	rep := mock_reporter.NewMockReporter(ctrl)
	ctx := reporter.NewContextWithReporter(context.Background(), rep)

	failure := errors.New("something odd")

	rep.EXPECT().ReportExceptionWithContext(failure, gomock.Any()).Return(nil).Times(1)

	runner, client, rec, _ := newTestRunner(t)

	require.ErrorIs(t, runner.Run(ctx, "1", client, &funcRequest{
		fn: func(context.Context, *Handle[connector.Incoming]) error { return failure },
	}), failure)

	require.Equal(t, []events.RequestFailed{{RequestID: "1", Cause: failure, Final: true}}, eventsOf[events.RequestFailed](rec))
}

func TestRunnerNotifyConnectionFailed(t *testing.T) {
	runner, _, rec, _ := newTestRunner(t)

	err := &mail.AuthError{Message: "mailbox locked"}

	runner.NotifyConnectionFailed(context.Background(), "1", &FolderRefresh{}, err)

	require.Equal(t, []events.Event{
		events.RequestFailed{RequestID: "1", Cause: err, Final: true},
	}, rec.all())
}
