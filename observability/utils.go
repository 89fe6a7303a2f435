package observability

import (
	"context"
	"time"
)

// Failure types counted by AddFailure.
const (
	FailureParseMessage   = "failedParseMessage"
	FailureDecodeContent  = "failedDecodeContent"
	FailureStoreContent   = "failedStoreContent"
	FailureRequest        = "failedRequest"
	FailureUnexpectedType = "unexpectedType"
)

func result(err error) string {
	if err != nil {
		return "failure"
	}

	return "success"
}

func AddConnection(ctx context.Context, protocol string, err error) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.Connections.WithLabelValues(protocol, result(err)).Inc()
	}
}

func AddAuthAttempt(ctx context.Context, protocol string, err error) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.AuthAttempts.WithLabelValues(protocol, result(err)).Inc()
	}
}

func AddCommand(ctx context.Context, protocol, command string, err error) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.Commands.WithLabelValues(protocol, command, result(err)).Inc()
	}
}

func AddBytesReceived(ctx context.Context, protocol string, n int) {
	if m, ok := getMetricsFromContext(ctx); ok && n > 0 {
		m.BytesReceived.WithLabelValues(protocol).Add(float64(n))
	}
}

func AddStall(ctx context.Context, protocol string) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.Stalls.WithLabelValues(protocol).Inc()
	}
}

func ObserveRequest(ctx context.Context, request string, start time.Time, err error) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.RequestDuration.WithLabelValues(request, result(err)).Observe(time.Since(start).Seconds())
	}
}

func AddFailure(ctx context.Context, failureType string) {
	if m, ok := getMetricsFromContext(ctx); ok {
		m.Failures.WithLabelValues(failureType).Inc()
	}
}
