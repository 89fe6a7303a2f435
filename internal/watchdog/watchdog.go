// Package watchdog aborts protocol exchanges that stop making progress.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/courier-mail/courier/logging"
)

// Watchdog calls onExpire if it is not cancelled or kicked within its timeout after being started.
// All methods may be called from any goroutine.
type Watchdog struct {
	timeout  time.Duration
	onExpire func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	expired bool
	stopped bool
}

func New(timeout time.Duration, onExpire func()) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Start arms the watchdog, replacing any running deadline.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	w.disarm()
	w.expired = false
	w.arm()
}

// Kick pushes the deadline of an armed watchdog back by a full timeout.
func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil || w.stopped {
		return
	}

	w.disarm()
	w.arm()
}

// Cancel disarms the watchdog. Cancelling a watchdog that is not armed does nothing.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disarm()
}

// Expired reports whether the last started deadline passed.
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.expired
}

// Stop disarms the watchdog for good.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disarm()
	w.stopped = true
}

func (w *Watchdog) arm() {
	w.gen++

	gen := w.gen

	w.timer = time.AfterFunc(w.timeout, func() {
		logging.DoAnnotate(context.Background(), func(context.Context) {
			w.fire(gen)
		}, logging.Labels{"worker": "watchdog"})
	})
}

func (w *Watchdog) disarm() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	// A callback already in flight sees a stale generation.
	w.gen++
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()

	if gen != w.gen || w.timer == nil {
		w.mu.Unlock()
		return
	}

	w.timer = nil
	w.expired = true

	w.mu.Unlock()

	if w.onExpire != nil {
		w.onExpire()
	}
}
