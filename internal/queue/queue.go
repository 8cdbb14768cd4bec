package queue

import (
	"context"
	"time"

	"github.com/your-org/ubnad/internal/model"
)

// Queue is the bounded FIFO handoff between the scanner and the analyzer.
// The scanner owns the push side, the analyzer owns the pop side.
type Queue struct {
	ch chan model.ConnEvent
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{ch: make(chan model.ConnEvent, capacity)}
}

// Push enqueues an event, waiting at most timeout for free capacity.
// It returns false if the queue stayed full past the timeout; the event
// is dropped and never retried.
func (q *Queue) Push(ev model.ConnEvent, timeout time.Duration) bool {
	select {
	case q.ch <- ev:
		return true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case q.ch <- ev:
		return true
	case <-t.C:
		return false
	}
}

// Pop dequeues one event, waiting at most timeout. The second return is
// false when the wait timed out or ctx was cancelled; the analyzer uses
// that as its heartbeat tick.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (model.ConnEvent, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case ev := <-q.ch:
		return ev, true
	case <-t.C:
		return model.ConnEvent{}, false
	case <-ctx.Done():
		return model.ConnEvent{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}
