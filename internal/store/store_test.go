package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/ubnad/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ubnad.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func scoredEvent(ts time.Time, name string, risk model.RiskLevel, score float64) model.ScoredEvent {
	return model.ScoredEvent{
		ConnEvent: model.ConnEvent{
			Timestamp:   ts,
			Pid:         100,
			ProcessName: name,
			DestIP:      "8.8.8.8",
			DestPort:    443,
		},
		IntentScore:    0.0,
		SuspicionScore: score,
		Risk:           risk,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ubnad.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestEmptyLogReturnsEmptyNotError(t *testing.T) {
	s := openTestStore(t)

	recs, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent on empty log: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count on empty log: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected count 0, got %d", n)
	}
}

func TestAppendThenRecentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	if err := s.Append(scoredEvent(ts, "chrome.exe", model.RiskMedium, 5.0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := s.Recent(1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	r := recs[0]
	if r.ProcessName != "chrome.exe" || r.DestIP != "8.8.8.8" || r.DestPort != 443 {
		t.Fatalf("round trip mismatch: %+v", r)
	}
	if r.Risk != model.RiskMedium || r.SuspicionScore != 5.0 {
		t.Fatalf("score/risk mismatch: %+v", r)
	}
	if r.Timestamp != "2026-03-01 12:00:00" {
		t.Fatalf("unexpected timestamp format: %q", r.Timestamp)
	}
}

func TestRecentIsReverseChronological(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	for i := 0; i < 3; i++ {
		ev := scoredEvent(base.Add(time.Duration(i)*time.Minute), "p", model.RiskLow, 0)
		if err := s.Append(ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recs, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Timestamp != "2026-03-01 12:02:00" || recs[1].Timestamp != "2026-03-01 12:01:00" {
		t.Fatalf("wrong order: %q, %q", recs[0].Timestamp, recs[1].Timestamp)
	}
	if recs[0].ID <= recs[1].ID {
		t.Fatalf("ids should be monotonic: %d then %d", recs[0].ID, recs[1].ID)
	}
}

func TestByRiskFiltersLevels(t *testing.T) {
	s := openTestStore(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	events := []model.ScoredEvent{
		scoredEvent(ts, "a", model.RiskLow, 0),
		scoredEvent(ts.Add(time.Second), "b", model.RiskHigh, 11),
		scoredEvent(ts.Add(2*time.Second), "c", model.RiskCritical, 20),
		scoredEvent(ts.Add(3*time.Second), "d", model.RiskMedium, 6),
	}
	for _, ev := range events {
		if err := s.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.ByRisk([]model.RiskLevel{model.RiskHigh, model.RiskCritical}, 10)
	if err != nil {
		t.Fatalf("by risk: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 high-risk records, got %d", len(recs))
	}
	if recs[0].ProcessName != "c" || recs[1].ProcessName != "b" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestPruneBefore(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	for i := 0; i < 4; i++ {
		ev := scoredEvent(base.Add(time.Duration(i)*time.Hour), "p", model.RiskLow, 0)
		if err := s.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	removed, err := s.PruneBefore(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned rows, got %d", removed)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", n)
	}
}
