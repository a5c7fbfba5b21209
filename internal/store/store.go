// Package store persists published UI artifacts and completion traces in a
// single SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"uiforge/internal/logging"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store owns the database handle shared by ArtifactStore and TraceStore.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the database at path and ensures the
// schema. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		logging.StoreError("failed to initialize schema at %s: %v", path, err)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("store opened: %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		title TEXT,
		markup TEXT,
		styles TEXT,
		script TEXT,
		raw TEXT NOT NULL,
		document TEXT NOT NULL,
		structured INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);

	CREATE TABLE IF NOT EXISTS completion_traces (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		stage TEXT,
		model TEXT,
		structured INTEGER NOT NULL,
		system_prompt TEXT NOT NULL,
		user_prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		duration_ms INTEGER,
		success INTEGER NOT NULL,
		error_message TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_traces_run ON completion_traces(run_id);
	CREATE INDEX IF NOT EXISTS idx_traces_stage ON completion_traces(stage);
	CREATE INDEX IF NOT EXISTS idx_traces_success ON completion_traces(success);
	CREATE INDEX IF NOT EXISTS idx_traces_created ON completion_traces(created_at);
	`

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *Store) Close() error {
	logging.StoreDebug("closing store: %s", s.dbPath)
	return s.db.Close()
}
