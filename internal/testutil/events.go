package testutil

import (
	"context"
	"sync"

	"github.com/roach88/jsondb/internal/events"
)

// EventRecorder is a Bus that keeps every event it receives.
//
// Thread-safety: safe for concurrent use via internal mutex.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// FailWith makes later broadcasts record the event and return err.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Broadcast implements events.Bus.
func (r *EventRecorder) Broadcast(_ context.Context, topic, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Topic: topic, Payload: payload})
	return r.err
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Reset clears recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
