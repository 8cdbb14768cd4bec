package alerts

import (
	"testing"
	"time"

	"github.com/your-org/ubnad/internal/model"
)

type captureNotifier struct {
	alerts []Alert
	err    error
}

func (c *captureNotifier) Notify(a Alert) error {
	c.alerts = append(c.alerts, a)
	return c.err
}

func (c *captureNotifier) Close() error { return nil }

func TestEmitFormatsMessage(t *testing.T) {
	sink := &captureNotifier{}
	e := NewEmitter(sink)

	ev := model.ScoredEvent{
		ConnEvent: model.ConnEvent{
			Timestamp:   time.Now(),
			Pid:         100,
			ProcessName: "chrome.exe",
			DestIP:      "8.8.8.8",
			DestPort:    443,
		},
		IntentScore:    0.0,
		SuspicionScore: 10.0,
		Risk:           model.RiskHigh,
	}
	e.Emit(ev, 40*time.Second)

	if len(sink.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(sink.alerts))
	}
	a := sink.alerts[0]
	if a.Severity != model.RiskHigh {
		t.Fatalf("expected HIGH severity, got %s", a.Severity)
	}
	want := "[HIGH] chrome.exe connecting to 8.8.8.8 (score: 10.0, idle: 40s)"
	if a.Message != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", a.Message, want)
	}
}

func TestEmitSurvivesSinkFailure(t *testing.T) {
	failing := &captureNotifier{err: errFake}
	healthy := &captureNotifier{}
	e := NewEmitter(failing, healthy)

	ev := model.ScoredEvent{
		ConnEvent:      model.ConnEvent{ProcessName: "p", DestIP: "1.1.1.1"},
		SuspicionScore: 16.0,
		Risk:           model.RiskCritical,
	}
	e.Emit(ev, 0)

	if len(healthy.alerts) != 1 {
		t.Fatalf("failing sink must not stop delivery to other sinks")
	}
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "sink unavailable" }
