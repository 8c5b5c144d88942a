package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist. The path must be on a local filesystem.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := checkLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the API and the event follower.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS script_runs (
  owner_id     TEXT PRIMARY KEY,
  job_id       INTEGER NOT NULL,
  script       TEXT,
  script_hash  TEXT,
  pid          INTEGER NOT NULL DEFAULT 0,
  state        TEXT NOT NULL,
  outcome      TEXT,
  exit_code    INTEGER,
  signal       INTEGER,
  started_at   TEXT NOT NULL,
  killed_at    TEXT,
  finished_at  TEXT
);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id    INTEGER NOT NULL,
  kind        TEXT NOT NULL,
  owner_id    TEXT,
  payload     JSON NOT NULL DEFAULT '{}',
  recorded_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS script_runs_job_idx ON script_runs(job_id, started_at);`,
		`CREATE INDEX IF NOT EXISTS script_runs_started_at_idx ON script_runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS anomalies_kind_idx ON anomalies(kind, recorded_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
