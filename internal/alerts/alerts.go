package alerts

import (
	"fmt"
	"time"

	"github.com/your-org/ubnad/internal/logger"
	"github.com/your-org/ubnad/internal/metrics"
	"github.com/your-org/ubnad/internal/model"
)

// Alert is one human-readable notification about a suspicious event.
type Alert struct {
	Timestamp   time.Time       `json:"timestamp"`
	Severity    model.RiskLevel `json:"severity"`
	ProcessName string          `json:"process_name"`
	DestIP      string          `json:"dest_ip"`
	Score       float64         `json:"score"`
	IdleSeconds int             `json:"idle_seconds"`
	Message     string          `json:"message"`
}

// Notifier delivers alerts to one sink.
type Notifier interface {
	Notify(a Alert) error
	Close() error
}

// Emitter fans alerts out to its sinks. Sink failures are logged and
// swallowed; alerting must never take down the analyzer.
type Emitter struct {
	sinks []Notifier
}

// NewEmitter creates an emitter over the given sinks.
func NewEmitter(sinks ...Notifier) *Emitter {
	return &Emitter{sinks: sinks}
}

// Emit builds the alert for a scored event and delivers it.
func (e *Emitter) Emit(ev model.ScoredEvent, idle time.Duration) {
	idleSecs := int(idle.Seconds())
	a := Alert{
		Timestamp:   ev.Timestamp,
		Severity:    ev.Risk,
		ProcessName: ev.ProcessName,
		DestIP:      ev.DestIP,
		Score:       ev.SuspicionScore,
		IdleSeconds: idleSecs,
	}
	a.Message = fmt.Sprintf("[%s] %s connecting to %s (score: %.1f, idle: %ds)",
		a.Severity, a.ProcessName, a.DestIP, a.Score, a.IdleSeconds)

	metrics.IncAlert(a.Severity)
	for _, sink := range e.sinks {
		if err := sink.Notify(a); err != nil {
			logger.Errorf("alert sink failed: %v", err)
		}
	}
}

// Close closes all sinks.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ConsoleNotifier logs alerts through the standard logger.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Notify(a Alert) error {
	logger.Warnf("ALERT: %s", a.Message)
	return nil
}

func (ConsoleNotifier) Close() error { return nil }
