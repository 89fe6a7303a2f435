// Package request defines the operations run against a mail client and the machinery that runs them.
//
// Every request reports an initial status, checks that the client has the right folder selected before touching
// it, reports progress while it runs and ends in exactly one of RequestComplete or RequestFailed.
package request

import (
	"context"
)

// Client is what every request target has in common.
type Client interface {
	Protocol() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsConnected() bool
}

// Request is one operation against a client of type C.
type Request[C Client] interface {
	// Name labels the request in logs and metrics.
	Name() string

	// InitialStatus is shown before the request starts.
	InitialStatus() string

	// Deliberate is true for user-initiated requests and false for background polling.
	Deliberate() bool

	Execute(ctx context.Context, h *Handle[C]) error
}

// merger is implemented by requests that can absorb the request queued right after them.
type merger[C Client] interface {
	merge(next Request[C]) (Request[C], bool)
}

// Origin is embedded by every request variant to carry the deliberate flag.
type Origin struct {
	Automatic bool
}

func (o Origin) Deliberate() bool {
	return !o.Automatic
}
