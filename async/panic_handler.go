// Package async holds the goroutine plumbing shared by the engine's background workers.
package async

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// PanicHandler receives the value recovered from a panicking goroutine.
type PanicHandler interface {
	HandlePanic(any)
}

// NoopPanicHandler does not recover; the panic continues to unwind.
type NoopPanicHandler struct{}

func (NoopPanicHandler) HandlePanic(any) {}

// LogPanicHandler recovers and logs the panic together with the stack of the panicking goroutine.
type LogPanicHandler struct {
	Name string
}

func (h LogPanicHandler) HandlePanic(r any) {
	logrus.WithField("pkg", "async").
		WithField("worker", h.Name).
		WithField("stack", string(debug.Stack())).
		Errorf("Recovered from panic: %v", r)
}

// HandlePanic must be deferred directly. A nil or noop handler lets the panic propagate.
func HandlePanic(panicHandler PanicHandler) {
	switch panicHandler.(type) {
	case nil, NoopPanicHandler, *NoopPanicHandler:
		return
	}

	if r := recover(); r != nil {
		panicHandler.HandlePanic(r)
	}
}
