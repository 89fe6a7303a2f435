package reporter

import (
	"context"

	"github.com/sirupsen/logrus"
)

// MessageWithContext reports message through the reporter of ctx, if any.
func MessageWithContext(ctx context.Context, message string, context Context) {
	report(ctx, func(rep Reporter) error {
		return rep.ReportMessageWithContext(message, context)
	})
}

// ExceptionWithContext reports err through the reporter of ctx, if any.
func ExceptionWithContext(ctx context.Context, err error, context Context) {
	report(ctx, func(rep Reporter) error {
		return rep.ReportExceptionWithContext(err, context)
	})
}

func Exception(ctx context.Context, info any) {
	report(ctx, func(rep Reporter) error {
		return rep.ReportException(info)
	})
}

func Message(ctx context.Context, message string) {
	report(ctx, func(rep Reporter) error {
		return rep.ReportMessage(message)
	})
}

func report(ctx context.Context, fn func(Reporter) error) {
	rep, ok := GetReporterFromContext(ctx)
	if !ok {
		return
	}

	if err := fn(rep); err != nil {
		logrus.WithField("pkg", "reporter").WithError(err).Error("Failed to report")
	}
}
