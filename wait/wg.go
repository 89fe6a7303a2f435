// Package wait provides a WaitGroup whose goroutines report panics to a handler.
package wait

import (
	"context"
	"sync"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/logging"
)

type Group struct {
	wg           sync.WaitGroup
	PanicHandler async.PanicHandler
}

// Go runs f in a new annotated goroutine tracked by the group.
func (wg *Group) Go(f func()) {
	wg.wg.Add(1)

	logging.GoAnnotate(context.Background(), func(context.Context) {
		defer wg.wg.Done()
		defer async.HandlePanic(wg.PanicHandler)

		f()
	})
}

func (wg *Group) Wait() {
	wg.wg.Wait()
}
