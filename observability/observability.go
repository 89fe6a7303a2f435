// Package observability exposes the engine's prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the collectors of one engine. They are registered on the registerer passed to NewMetrics.
type Metrics struct {
	Connections     *prometheus.CounterVec
	AuthAttempts    *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	BytesReceived   *prometheus.CounterVec
	Stalls          *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Failures        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_connections_total",
				Help: "Total number of server connections opened",
			},
			[]string{"protocol", "result"},
		),

		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_authentication_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"protocol", "result"},
		),

		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_commands_total",
				Help: "Total number of protocol commands executed",
			},
			[]string{"protocol", "command", "result"},
		),

		BytesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_bytes_received_total",
				Help: "Total number of bytes received from servers",
			},
			[]string{"protocol"},
		),

		Stalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_stalls_total",
				Help: "Total number of exchanges aborted because the server stopped responding",
			},
			[]string{"protocol"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_request_duration_seconds",
				Help:    "Duration of mail store requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"request", "result"},
		),

		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_failures_total",
				Help: "Total number of unexpected failures by type",
			},
			[]string{"type"},
		),
	}
}
