package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsFromContext(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ctx := NewContextWithMetrics(context.Background(), metrics)

	AddCommand(ctx, "pop3", "STAT", nil)
	AddCommand(ctx, "pop3", "STAT", nil)
	AddCommand(ctx, "pop3", "PASS", errors.New("-ERR"))
	AddBytesReceived(ctx, "pop3", 128)
	AddStall(ctx, "smtp")
	AddFailure(ctx, FailureParseMessage)
	ObserveRequest(ctx, "fetch", time.Now(), nil)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Commands.WithLabelValues("pop3", "STAT", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Commands.WithLabelValues("pop3", "PASS", "failure")))
	require.Equal(t, 128.0, testutil.ToFloat64(metrics.BytesReceived.WithLabelValues("pop3")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Stalls.WithLabelValues("smtp")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures.WithLabelValues(FailureParseMessage)))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.RequestDuration))
}

func TestMetricsWithoutContextAreIgnored(t *testing.T) {
	require.NotPanics(t, func() {
		AddCommand(context.Background(), "smtp", "EHLO", nil)
		AddStall(context.Background(), "smtp")
	})
}
