// Package events defines what the engine publishes to its watchers.
package events

type Event interface {
	_isEvent()
}

type eventBase struct{}

func (eventBase) _isEvent() {}
