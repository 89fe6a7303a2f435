package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/courier-mail/courier/logging"
)

// QueuedChannel is a channel backed by an unbounded queue. Publishers never block on slow readers;
// items are handed to the channel in order by a single goroutine.
type QueuedChannel[T any] struct {
	ch      chan T
	items   []T
	cond    *sync.Cond
	closed  atomic.Bool
	discard atomic.Bool
	wg      sync.WaitGroup
}

func NewQueuedChannel[T any](chanBufferSize, queueCapacity int, panicHandler PanicHandler, name string) *QueuedChannel[T] {
	queue := &QueuedChannel[T]{
		ch:    make(chan T, chanBufferSize),
		items: make([]T, 0, queueCapacity),
		cond:  sync.NewCond(&sync.Mutex{}),
	}

	queue.wg.Add(1)

	logging.GoAnnotate(context.Background(), func(context.Context) {
		defer HandlePanic(panicHandler)
		defer queue.wg.Done()
		defer close(queue.ch)

		for {
			item, ok := queue.pop()
			if !ok {
				return
			}

			queue.ch <- item
		}
	}, logging.Labels{"name": name})

	return queue
}

// Enqueue appends items to the queue. It returns false once the queue has been closed.
func (q *QueuedChannel[T]) Enqueue(items ...T) bool {
	if q.closed.Load() {
		return false
	}

	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.items = append(q.items, items...)

	q.cond.Broadcast()

	return true
}

func (q *QueuedChannel[T]) GetChannel() <-chan T {
	return q.ch
}

// Len returns the number of items not yet handed to the channel.
func (q *QueuedChannel[T]) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	return len(q.items)
}

// Close stops accepting items. Queued items are still delivered before the channel closes.
func (q *QueuedChannel[T]) Close() {
	q.closed.Store(true)

	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	q.cond.Broadcast()
}

// CloseAndDiscardQueued stops accepting items and drops whatever has not been delivered yet.
// A reader may still be handed at most the item that was in flight.
func (q *QueuedChannel[T]) CloseAndDiscardQueued() {
	q.discard.Store(true)

	q.cond.L.Lock()
	q.items = nil
	q.cond.L.Unlock()

	q.Close()

	// Unblock the delivery goroutine if nobody reads anymore.
	go func() {
		for range q.ch { //nolint:revive
		}
	}()
}

// Wait blocks until the delivery goroutine has exited.
func (q *QueuedChannel[T]) Wait() {
	q.wg.Wait()
}

func (q *QueuedChannel[T]) pop() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	var item T

	// Keep delivering after Close until the queue is drained, then stop.
	for len(q.items) == 0 {
		if q.closed.Load() {
			return item, false
		}

		q.cond.Wait()
	}

	if q.discard.Load() {
		return item, false
	}

	item, q.items = q.items[0], q.items[1:]

	return item, true
}
