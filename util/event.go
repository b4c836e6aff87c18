package util

import (
	"sync"
)

// Event is a one-shot broadcast used to signal shutdown across goroutines.
// Notify may be called any number of times; only the first has an effect.
type Event struct {
	once sync.Once
	c    chan struct{}
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

func (e *Event) Notify() {
	e.once.Do(func() {
		close(e.c)
	})
}

func (e *Event) Wait() {
	<-e.c
}

// Chan exposes the event for use in select statements.
func (e *Event) Chan() <-chan struct{} {
	return e.c
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}
