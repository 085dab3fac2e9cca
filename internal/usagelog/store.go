// Package usagelog persists manager events to a local SQLite database for
// offline analytics. Writes are fire-and-forget: a failed insert is logged,
// never surfaced to the request path.
package usagelog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"modelmgrd/internal/manager"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        INTEGER NOT NULL,
	name      TEXT    NOT NULL,
	model_id  TEXT    NOT NULL DEFAULT '',
	fields    TEXT    NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts);
CREATE INDEX IF NOT EXISTS idx_events_name_model ON events (name, model_id);
`

// Store is an EventPublisher backed by SQLite.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log zerolog.Logger
}

var _ manager.EventPublisher = (*Store)(nil)

// Open creates or opens the database at path and ensures the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty usage log path")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open usage log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure usage log schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Publish records one event. Insert failures are logged and dropped.
func (s *Store) Publish(e manager.Event) {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := "{}"
	if len(e.Fields) > 0 {
		if b, err := json.Marshal(e.Fields); err == nil {
			fields = string(b)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(
		`INSERT INTO events (ts, name, model_id, fields) VALUES (?, ?, ?, ?)`,
		at.Unix(), e.Name, e.ModelID, fields,
	); err != nil {
		s.log.Warn().Err(err).Str("event", e.Name).Msg("usage log insert failed")
	}
}

// UsageCounts returns per-model usage event counts since the given time.
func (s *Store) UsageCounts(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT model_id, COUNT(*) FROM events WHERE name = ? AND ts >= ? GROUP BY model_id`,
		manager.EventUsage, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// ErrorCounts returns counts of reported errors by kind since the given time.
func (s *Store) ErrorCounts(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT json_extract(fields, '$.kind'), COUNT(*) FROM events WHERE name = ? AND ts >= ? GROUP BY 1`,
		manager.EventError, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind sql.NullString
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind.String] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
