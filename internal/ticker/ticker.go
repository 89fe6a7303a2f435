// Package ticker runs a callback periodically, or on demand through Poll.
package ticker

import "time"

type Ticker struct {
	ticker *time.Ticker
	pollCh chan chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(period time.Duration) *Ticker {
	return &Ticker{
		ticker: time.NewTicker(period),
		pollCh: make(chan chan struct{}),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Poll runs the callback now. It blocks until the callback has returned.
// It returns immediately once the ticker is stopped.
func (ticker *Ticker) Poll() {
	doneCh := make(chan struct{})

	select {
	case ticker.pollCh <- doneCh:
		<-doneCh

	case <-ticker.doneCh:
	}
}

// Stop ends Tick and waits for a running callback to return. It must be called once.
func (ticker *Ticker) Stop() {
	close(ticker.stopCh)
	<-ticker.doneCh
}

// Tick calls fn on every period and every poll until the ticker is stopped.
func (ticker *Ticker) Tick(fn func(time.Time)) {
	defer close(ticker.doneCh)
	defer ticker.ticker.Stop()

	for {
		select {
		case tick := <-ticker.ticker.C:
			fn(tick)

		case doneCh := <-ticker.pollCh:
			fn(time.Now())
			close(doneCh)

		case <-ticker.stopCh:
			return
		}
	}
}
