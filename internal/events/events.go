// Package events carries change notifications out of the store.
//
// The store announces every committed write on a Bus. Delivery is best
// effort: a failed Broadcast is logged by the caller and never fails the
// write that produced it.
package events

import (
	"context"
	"errors"
)

// Topics broadcast by the store. The payload is the logical path that
// changed, e.g. "/users/u1".
const (
	TopicUpdated = "jsondb-updated"
	TopicDeleted = "jsondb-deleted"
)

// ErrClosed is returned by Broadcast after a bus has been closed.
var ErrClosed = errors.New("events: bus closed")

// Event is one notification.
type Event struct {
	Topic   string
	Payload string
}

// Bus publishes notifications.
type Bus interface {
	Broadcast(ctx context.Context, topic, payload string) error
}

// Handler receives dispatched events.
type Handler func(ctx context.Context, e Event)

// Nop discards every event.
type Nop struct{}

// Broadcast implements Bus.
func (Nop) Broadcast(context.Context, string, string) error { return nil }

// Transacted buffers events raised inside a transaction until the caller
// knows whether it committed. It is not safe for concurrent use; a
// transaction belongs to one goroutine.
type Transacted struct {
	pending []Event
}

// Broadcast implements Bus by buffering the event.
func (t *Transacted) Broadcast(_ context.Context, topic, payload string) error {
	t.pending = append(t.pending, Event{Topic: topic, Payload: payload})
	return nil
}

// Pending returns the buffered events in broadcast order.
func (t *Transacted) Pending() []Event {
	return t.pending
}

// Publish forwards the buffered events to bus and clears the buffer.
// Every event is attempted; the returned error joins the failures.
func (t *Transacted) Publish(ctx context.Context, bus Bus) error {
	pending := t.pending
	t.pending = nil
	var errs []error
	for _, e := range pending {
		if err := bus.Broadcast(ctx, e.Topic, e.Payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops the buffered events, for a rolled back transaction.
func (t *Transacted) Discard() {
	t.pending = nil
}
