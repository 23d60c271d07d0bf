package db

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "motionbridge-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpenCreatesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "motionbridge-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("db file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.GetVersion()
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if version != schemaVersion {
		t.Errorf("version = %d, want %d", version, schemaVersion)
	}
}

func TestInvocationsTable(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(
		`INSERT INTO invocations (session_id, tool, args, ok, error, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		"sess-1", "ping", "{}", 1, "", 12,
	)
	if err != nil {
		t.Fatalf("insert invocation: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM invocations WHERE tool = 'ping'`).Scan(&count); err != nil {
		t.Fatalf("count invocations: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestInitIdempotent(t *testing.T) {
	db := setupTestDB(t)

	// Open already ran Init; a second run must not fail or wipe data.
	if _, err := db.Exec(`INSERT INTO invocations (tool, ok) VALUES ('ping', 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM invocations`).Scan(&count)
	if count != 1 {
		t.Errorf("count after re-init = %d, want 1", count)
	}
}
