package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// newTestDB opens a migrated database in a temp dir.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	return v
}

func TestNew(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		db, err := New("/nonexistent/path/test.db")
		if err == nil {
			_ = db.Close()
			t.Fatal("New() with missing directory should return error")
		}
	})

	t.Run("pragmas", func(t *testing.T) {
		db, err := New(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer func() {
			_ = db.Close()
		}()

		if got := db.Stats().MaxOpenConnections; got != 25 {
			t.Errorf("MaxOpenConnections = %d, want 25", got)
		}
		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
			t.Errorf("foreign_keys = %d (%v), want 1", fk, err)
		}
		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
			t.Errorf("journal_mode = %q (%v), want wal", mode, err)
		}
	})
}

func TestMigrate(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if v := userVersion(t, db); v != 0 {
		t.Fatalf("fresh user_version = %d, want 0", v)
	}

	for run := 1; run <= 2; run++ {
		if err := Migrate(db); err != nil {
			t.Fatalf("Migrate() run %d error = %v", run, err)
		}
		if v := userVersion(t, db); v != SchemaVersion {
			t.Errorf("run %d: user_version = %d, want %d", run, v, SchemaVersion)
		}
	}

	for _, table := range []string{"collections", "documents", "chunks", "feedback_events", "summaries"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil || count != 1 {
			t.Errorf("table %s: count = %d, err = %v", table, count, err)
		}
	}
}

func TestMigrate_ResumesFromRecordedVersion(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := applyMigration(db, 1, migrations[0]); err != nil {
		t.Fatalf("applyMigration() error = %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if v := userVersion(t, db); v != SchemaVersion {
		t.Errorf("user_version = %d, want %d", v, SchemaVersion)
	}
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	if err := Migrate(db); err == nil {
		t.Error("Migrate() should refuse a schema newer than the build")
	}
}

func TestMigrate_CascadesCollectionDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	collections := NewCollectionRepo(db)
	c, err := collections.GetOrCreate(ctx, "physics")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	chunks := NewChunkRepo(db)
	err = chunks.ReplaceSource(ctx, c.ID, "a.pdf", []ChunkRecord{{ID: "a.pdf_1_x", SourceID: "a.pdf", Page: 1, Text: "t"}})
	if err != nil {
		t.Fatalf("ReplaceSource() error = %v", err)
	}

	if err := collections.Delete(ctx, "physics"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if count != 0 {
		t.Errorf("chunks after collection delete = %d, want 0", count)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2026-03-01 12:30:00", "2026-03-01T12:30:00Z"} {
		got, err := parseTimestamp(s)
		if err != nil {
			t.Errorf("parseTimestamp(%q) error = %v", s, err)
			continue
		}
		if got.Year() != 2026 || got.Hour() != 12 || got.Minute() != 30 {
			t.Errorf("parseTimestamp(%q) = %v", s, got)
		}
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("parseTimestamp(garbage) should fail")
	}
}
