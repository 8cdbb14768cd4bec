package intent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/your-org/ubnad/internal/logger"
)

// Step thresholds for the coarse intent score.
const (
	activeIdle     = 5 * time.Second
	semiActiveIdle = 30 * time.Second
)

// Monitor tracks the timestamp of the last user input event and derives
// an idle time and a coarse intent score from it. With no listeners, the
// idle time grows unbounded and the score settles at its minimum.
type Monitor struct {
	lastInputNano atomic.Int64
	now           func() time.Time
}

// NewMonitor creates a monitor whose last-input timestamp starts at now.
func NewMonitor() *Monitor {
	return NewMonitorWithClock(time.Now)
}

// NewMonitorWithClock creates a monitor with an injectable clock.
func NewMonitorWithClock(now func() time.Time) *Monitor {
	m := &Monitor{now: now}
	m.lastInputNano.Store(now().UnixNano())
	return m
}

// Touch records a user input event.
func (m *Monitor) Touch() {
	m.lastInputNano.Store(m.now().UnixNano())
}

// IdleTime returns the elapsed time since the last input event.
func (m *Monitor) IdleTime() time.Duration {
	return m.now().Sub(time.Unix(0, m.lastInputNano.Load()))
}

// Score maps idle time onto [0,1]: 1.0 active, 0.5 semi-active, 0.0 idle.
func (m *Monitor) Score() float64 {
	idle := m.IdleTime()
	switch {
	case idle < activeIdle:
		return 1.0
	case idle < semiActiveIdle:
		return 0.5
	default:
		return 0.0
	}
}

// Listener is an optional input-event source. Run blocks until ctx is
// cancelled or the source becomes unavailable, calling touch for every
// observed input event. Absence of a usable source is not an error.
type Listener interface {
	Name() string
	Run(ctx context.Context, touch func()) error
}

// StartListeners supervises each listener in a background goroutine.
// Listener failures are logged and never surfaced to the caller.
func StartListeners(ctx context.Context, m *Monitor, listeners []Listener) {
	for _, l := range listeners {
		l := l
		go func() {
			if err := l.Run(ctx, m.Touch); err != nil {
				logger.Debugf("intent listener %s unavailable: %v", l.Name(), err)
			}
		}()
	}
}
