// Package queue provides the closable backlog used to serialize requests on one connection.
package queue

import (
	"sync"
	"sync/atomic"
)

// CTQueue is a closable FIFO safe for concurrent use. Once closed, no new items are accepted but the remaining
// items can still be popped.
type CTQueue[T any] struct {
	items  []T
	cond   *sync.Cond
	closed atomic.Bool
}

func NewCTQueue[T any]() *CTQueue[T] {
	return &CTQueue[T]{
		cond: sync.NewCond(&sync.Mutex{}),
	}
}

func (ctq *CTQueue[T]) Push(val ...T) bool {
	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	if ctq.IsClosed() {
		return false
	}

	ctq.items = append(ctq.items, val...)
	ctq.cond.Broadcast()

	return true
}

// Pop blocks until an item is available. It returns false once the queue is closed and empty.
func (ctq *CTQueue[T]) Pop() (T, bool) {
	return ctq.PopMerged(nil)
}

// PopMerged pops the next item and folds into it every following item that merge accepts.
// Merging stops at the first item merge rejects.
func (ctq *CTQueue[T]) PopMerged(merge func(T, T) (T, bool)) (T, bool) {
	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	for len(ctq.items) == 0 {
		if ctq.IsClosed() {
			var r T
			return r, false
		}

		ctq.cond.Wait()
	}

	item := ctq.items[0]
	ctq.items = ctq.items[1:]

	for merge != nil && len(ctq.items) > 0 {
		merged, ok := merge(item, ctq.items[0])
		if !ok {
			break
		}

		item = merged
		ctq.items = ctq.items[1:]
	}

	return item, true
}

// Peek returns the next item without removing it.
func (ctq *CTQueue[T]) Peek() (T, bool) {
	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	if len(ctq.items) == 0 {
		var r T
		return r, false
	}

	return ctq.items[0], true
}

func (ctq *CTQueue[T]) IsClosed() bool {
	return ctq.closed.Load()
}

// CloseAndRetrieveRemaining closes the queue and hands back the items nobody popped.
func (ctq *CTQueue[T]) CloseAndRetrieveRemaining() []T {
	ctq.closed.Store(true)

	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	items := ctq.items
	ctq.items = nil
	ctq.cond.Broadcast()

	return items
}

func (ctq *CTQueue[T]) Close() {
	ctq.closed.Store(true)

	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	ctq.cond.Broadcast()
}

func (ctq *CTQueue[T]) Len() int {
	ctq.cond.L.Lock()
	defer ctq.cond.L.Unlock()

	return len(ctq.items)
}
