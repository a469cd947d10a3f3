package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// Backend persists session state between runs.
type Backend interface {
	Load(sessionID string) (State, error)
	Save(sessionID string, state State) error
}

// NoopBackend keeps nothing; every session starts empty.
type NoopBackend struct{}

func (NoopBackend) Load(string) (State, error) { return NewState(), nil }
func (NoopBackend) Save(string, State) error   { return nil }

// LibSQLBackend stores one JSON-serialized state row per session in an
// embedded libSQL database.
type LibSQLBackend struct {
	db *sql.DB
}

// NewLibSQLBackend opens (creating directories as needed) a libSQL database
// at the given file path and ensures the memory table exists.
func NewLibSQLBackend(path string) (*LibSQLBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memory db directory: %w", err)
		}
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
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
		CREATE TABLE IF NOT EXISTS memory_state (
			session_id TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create memory_state table: %w", err)
	}
	return &LibSQLBackend{db: db}, nil
}

// Close closes the database.
func (b *LibSQLBackend) Close() error { return b.db.Close() }

func (b *LibSQLBackend) Load(sessionID string) (State, error) {
	var raw string
	err := b.db.QueryRow(
		`SELECT state FROM memory_state WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return NewState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt row should not poison the session; start fresh.
		return NewState(), nil
	}
	return state, nil
}

func (b *LibSQLBackend) Save(sessionID string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s state: %w", sessionID, err)
	}
	_, err = b.db.Exec(`
		INSERT INTO memory_state (session_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		sessionID, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// BackendFromEnv selects the persistence backend:
//
//	MEMORY_BACKEND — "libsql" (default) or "noop"
//	MEMORY_DB_PATH — database file for libsql (default ./data/shopflow_memory.db)
func BackendFromEnv() (Backend, error) {
	switch os.Getenv("MEMORY_BACKEND") {
	case "", "libsql":
		path := os.Getenv("MEMORY_DB_PATH")
		if path == "" {
			path = "./data/shopflow_memory.db"
		}
		return NewLibSQLBackend(path)
	case "noop":
		return NoopBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown MEMORY_BACKEND %q", os.Getenv("MEMORY_BACKEND"))
	}
}
