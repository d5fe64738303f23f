package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens the SQLite database at path and checks the connection.
// Foreign keys and the busy timeout are per-connection pragmas, so they go in the
// DSN where every pooled connection picks them up. WAL lets readers run while an
// ingest worker writes.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrations are applied in order. PRAGMA user_version records how many have run,
// so new steps are appended and existing ones never change.
var migrations = [][]string{
	{
		`CREATE TABLE collections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE documents (
			collection_id INTEGER NOT NULL,
			source_id TEXT NOT NULL,
			path TEXT NOT NULL,
			hash TEXT NOT NULL,
			pages INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL,
			parsed_by TEXT NOT NULL,
			ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection_id, source_id),
			FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE chunks (
			collection_id INTEGER NOT NULL,
			id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			hash TEXT NOT NULL,
			parsed_by TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (collection_id, id),
			FOREIGN KEY (collection_id) REFERENCES collections(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX idx_chunks_source ON chunks (collection_id, source_id)`,
	},
	{
		`CREATE TABLE feedback_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL,
			vote INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_feedback_chunk ON feedback_events (chunk_id)`,
	},
	{
		`CREATE TABLE summaries (
			key TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			source_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// Migrate applies every migration the database has not seen yet, each in its own
// transaction. Running it on an up-to-date database is a no-op.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err := applyMigration(db, i+1, migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("migration %d: set version: %w", version, err)
	}
	return tx.Commit()
}

// parseTimestamp parses a SQLite DATETIME column value.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.DateTime, s)
	if err == nil {
		return t, nil
	}
	// Rows written by the driver from a time.Time use RFC 3339.
	return time.Parse(time.RFC3339, s)
}
