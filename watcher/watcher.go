// Package watcher delivers a filtered stream of events to a single consumer.
package watcher

import (
	"reflect"

	"github.com/courier-mail/courier/async"
)

type Watcher[T any] struct {
	types   map[reflect.Type]struct{}
	eventCh *async.QueuedChannel[T]
}

// New returns a watcher for events of the given example types. With no types it watches everything.
func New[T any](panicHandler async.PanicHandler, ofType ...T) *Watcher[T] {
	types := make(map[reflect.Type]struct{}, len(ofType))

	for _, t := range ofType {
		types[reflect.TypeOf(t)] = struct{}{}
	}

	return &Watcher[T]{
		types:   types,
		eventCh: async.NewQueuedChannel[T](1, 1, panicHandler, "courier-watcher"),
	}
}

func (w *Watcher[T]) IsWatching(event T) bool {
	if len(w.types) == 0 {
		return true
	}

	_, ok := w.types[reflect.TypeOf(event)]

	return ok
}

func (w *Watcher[T]) GetChannel() <-chan T {
	return w.eventCh.GetChannel()
}

// Send queues the event if the watcher is interested in it.
// It returns false only when the watcher has been closed.
func (w *Watcher[T]) Send(event T) bool {
	if !w.IsWatching(event) {
		return true
	}

	return w.eventCh.Enqueue(event)
}

func (w *Watcher[T]) Close() {
	w.eventCh.CloseAndDiscardQueued()
	w.eventCh.Wait()
}
