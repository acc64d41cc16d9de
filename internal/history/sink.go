// Package history implements the optional, additive audit trail of
// SPEC_FULL.md section 4.8: a write-only SQLite log of lifecycle events.
// Never consulted by restart decisions or the snapshot path — a crash or
// unavailability of the sink must never affect supervision.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one recorded lifecycle transition.
type Event string

const (
	EventSpawn           Event = "spawn"
	EventRestart         Event = "restart"
	EventStop            Event = "stop"
	EventCrash           Event = "crash"
	EventLimitViolation  Event = "limit-violation"
)

// Sink is a write-only lifecycle event log.
type Sink struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	process_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	event TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);`

// Open creates (or reuses) a SQLite database at path and ensures the
// events table exists, mirroring the teacher's schema-ensure-then-insert
// pattern.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// Record inserts one event row with a generated uuid. Best-effort: callers
// should log a Record failure, not propagate it as a supervision error.
func (s *Sink) Record(processID uint64, name string, event Event, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, process_id, name, event, detail, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), processID, name, string(event), detail, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Close closes the underlying database.
func (s *Sink) Close() error { return s.db.Close() }
