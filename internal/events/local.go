package events

import (
	"context"
	"sync"
)

// Local is an in-process asynchronous bus. Broadcast enqueues and returns
// immediately; Run dispatches queued events to subscribers in FIFO order
// on its own goroutine.
//
// The queue is unbounded so a burst of writes never blocks on slow
// subscribers.
type Local struct {
	q *eventQueue

	mu       sync.RWMutex
	handlers []Handler
}

// NewLocal creates a Local bus with no subscribers.
func NewLocal() *Local {
	return &Local{q: newEventQueue()}
}

// Subscribe registers h for every subsequent event.
func (l *Local) Subscribe(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Broadcast implements Bus. It returns ErrClosed once Close was called.
func (l *Local) Broadcast(_ context.Context, topic, payload string) error {
	if !l.q.Enqueue(Event{Topic: topic, Payload: payload}) {
		return ErrClosed
	}
	return nil
}

// Len returns the number of events waiting for dispatch.
func (l *Local) Len() int {
	return l.q.Len()
}

// Close stops accepting events. Run delivers what is already queued and
// then returns.
func (l *Local) Close() {
	l.q.Close()
}

// Run dispatches events until the bus is closed and drained, or ctx is
// cancelled.
func (l *Local) Run(ctx context.Context) error {
	for {
		if e, ok := l.q.TryDequeue(); ok {
			l.dispatch(ctx, e)
			continue
		}
		if l.q.Drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.q.Wait():
		}
	}
}

func (l *Local) dispatch(ctx context.Context, e Event) {
	l.mu.RLock()
	handlers := l.handlers
	l.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, e)
	}
}

// eventQueue is a thread-safe unbounded FIFO.
//
// signal has a buffer of one so multiple enqueues coalesce into a single
// wake-up; it is closed by Close to release waiters.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds e to the back. Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

// Wait returns a channel that fires when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close is idempotent.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
