package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// LibSQLRecorder stores events in an embedded libSQL database with a
// monotonically increasing per-session sequence.
type LibSQLRecorder struct {
	db *sql.DB
}

// NewLibSQLRecorder opens the database at the given file path and ensures
// the events table exists.
func NewLibSQLRecorder(path string) (*LibSQLRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace db directory: %w", err)
		}
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			sequence   INTEGER NOT NULL,
			step       TEXT,
			event      TEXT NOT NULL,
			status     TEXT NOT NULL,
			data       TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			timestamp  TEXT NOT NULL,
			PRIMARY KEY (session_id, sequence)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	return &LibSQLRecorder{db: db}, nil
}

// Close closes the database.
func (r *LibSQLRecorder) Close() error { return r.db.Close() }

// Record appends the event with the next sequence number for its session.
// The transaction serializes sequence reads and writes.
func (r *LibSQLRecorder) Record(ctx context.Context, event Event) error {
	event = stamp(event)

	var data sql.NullString
	if len(event.Data) > 0 {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trace tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next trace sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (session_id, sequence, step, event, status, data, latency_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.SessionID, seq, event.Step, event.Event, event.Status, data,
		event.LatencyMs, event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return fmt.Errorf("insert trace event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace event: %w", err)
	}
	return nil
}

// Events returns all events for a session ordered by sequence.
func (r *LibSQLRecorder) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, sequence, step, event, status, data, latency_ms, timestamp
		 FROM events WHERE session_id = ? ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var step, data sql.NullString
		var ts string
		if err := rows.Scan(&e.SessionID, &e.Sequence, &step, &e.Event, &e.Status, &data, &e.LatencyMs, &ts); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		e.Step = step.String
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		if parsed, err := parseTimestamp(ts); err == nil {
			e.Timestamp = parsed
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// FromEnv selects the trace recorder:
//
//	TRACE_RECORDER — "libsql" (default), "jsonl", or "noop"
//	TRACE_DB_PATH  — database file for libsql (default ./data/shopflow_trace.db)
//	TRACE_PATH     — file for jsonl (default ./data/shopflow_trace.jsonl)
func FromEnv() (Recorder, error) {
	switch os.Getenv("TRACE_RECORDER") {
	case "", "libsql":
		path := os.Getenv("TRACE_DB_PATH")
		if path == "" {
			path = "./data/shopflow_trace.db"
		}
		return NewLibSQLRecorder(path)
	case "jsonl":
		path := os.Getenv("TRACE_PATH")
		if path == "" {
			path = "./data/shopflow_trace.jsonl"
		}
		return NewJSONLRecorder(path)
	case "noop":
		return NoopRecorder{}, nil
	default:
		return nil, fmt.Errorf("unknown TRACE_RECORDER %q", os.Getenv("TRACE_RECORDER"))
	}
}

func parseTimestamp(ts string) (t time.Time, err error) {
	return time.Parse("2006-01-02T15:04:05.000Z07:00", ts)
}
