package testutil

import (
	"context"
	"sync"

	"github.com/thenoetrevino/tablero/internal/events"
)

// Recorder is an events.Publisher that keeps every published event
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
	Err    error // returned from Publish when set
}

// Publish records e
func (r *Recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Len returns the number of recorded events
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent event, or nil
func (r *Recorder) Last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
