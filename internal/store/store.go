package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/your-org/ubnad/internal/model"
)

// Store is the durable, append-only log of scored events. Every
// operation serializes through one mutex so the scanner-side readers
// (query CLI) and the analyzer's writes never interleave mid-statement.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Record is the persisted form of a scored event. ID is assigned by the
// store and increases monotonically.
type Record struct {
	ID             int64
	Timestamp      string
	Pid            int32
	ProcessName    string
	DestIP         string
	DestPort       uint32
	IntentScore    float64
	SuspicionScore float64
	Risk           model.RiskLevel
}

// Open opens (or creates) the database at path and ensures the schema
// exists. Schema creation failure is returned to the caller, which must
// treat it as fatal: the pipeline must not start without a working log.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open activity store: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init activity store schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		pid INTEGER,
		process_name TEXT NOT NULL,
		dest_ip TEXT NOT NULL,
		dest_port INTEGER NOT NULL,
		intent_score REAL NOT NULL,
		suspicion_score REAL NOT NULL,
		risk_level TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_risk_level ON events(risk_level);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append writes one scored event to the log.
func (s *Store) Append(ev model.ScoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO events
		(timestamp, pid, process_name, dest_ip, dest_port, intent_score, suspicion_score, risk_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.Format(model.TimestampFormat),
		ev.Pid,
		ev.ProcessName,
		ev.DestIP,
		ev.DestPort,
		ev.IntentScore,
		ev.SuspicionScore,
		string(ev.Risk),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit records in reverse-chronological order.
// An empty log yields an empty slice, not an error.
func (s *Store) Recent(limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, pid, process_name, dest_ip, dest_port,
		       intent_score, suspicion_score, risk_level
		FROM events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ByRisk returns up to limit records whose risk level is in levels, in
// reverse-chronological order.
func (s *Store) ByRisk(levels []model.RiskLevel, limit int) ([]Record, error) {
	if len(levels) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(levels)), ",")
	args := make([]interface{}, 0, len(levels)+1)
	for _, l := range levels {
		args = append(args, string(l))
	}
	args = append(args, limit)

	rows, err := s.db.Query(`
		SELECT id, timestamp, pid, process_name, dest_ip, dest_port,
		       intent_score, suspicion_score, risk_level
		FROM events
		WHERE risk_level IN (`+placeholders+`)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events by risk: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the total number of persisted events.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// PruneBefore deletes records older than cutoff and returns how many
// were removed. Retention is administrative; the pipeline never calls
// this itself.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM events WHERE timestamp < ?`,
		cutoff.Format(model.TimestampFormat))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		var r Record
		var risk string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Pid, &r.ProcessName, &r.DestIP,
			&r.DestPort, &r.IntentScore, &r.SuspicionScore, &risk); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		r.Risk = model.RiskLevel(risk)
		out = append(out, r)
	}
	return out, rows.Err()
}
