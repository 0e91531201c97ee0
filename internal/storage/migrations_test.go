package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// seedV1Journal writes a journal as the first release left it: no snapshots table,
// no indexes, one open session.
func seedV1Journal(t *testing.T, root string) {
	t.Helper()
	path := JournalPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	for _, q := range []string{
		versionDDL,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'v0.1', '2024-05-01T00:00:00Z', '2024-05-01T00:00:00Z')`,
		`CREATE TABLE sessions (id TEXT PRIMARY KEY, started_at TEXT NOT NULL, ended_at TEXT, texture_size INTEGER NOT NULL, brush TEXT NOT NULL)`,
		`CREATE TABLE events (id INTEGER PRIMARY KEY, session_id TEXT NOT NULL, seq INTEGER NOT NULL, ts TEXT NOT NULL, kind TEXT NOT NULL, payload TEXT NOT NULL, accepted INTEGER NOT NULL, stamps INTEGER NOT NULL DEFAULT 0, UNIQUE(session_id, seq))`,
		`INSERT INTO sessions VALUES('old', '2024-05-01T10:00:00Z', NULL, 64, '{"size":3,"color":{"r":0,"g":0,"b":0,"a":1},"shape":"quad"}')`,
	} {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}
}

func TestOpenJournalMigratesV1(t *testing.T) {
	root := t.TempDir()
	seedV1Journal(t, root)

	j, err := OpenJournal(root)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if v, err := readSchema(ctx, j.db); err != nil || v != schemaVersion {
		t.Fatalf("schema = %d, %v; want %d", v, err, schemaVersion)
	}
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name IN ('idx_events_kind','idx_sessions_started')`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("v2 indexes = %d, %v", n, err)
	}
	s, err := j.LatestSession(ctx)
	if err != nil || s.ID != "old" || s.TextureSize != 64 || s.Brush.Size != 3 {
		t.Fatalf("old session = %+v, %v", s, err)
	}
	if _, err := j.ListSnapshots(ctx, "old", 1); err != nil {
		t.Fatalf("snapshots table missing: %v", err)
	}
}

func TestOpenJournalLeavesNewerSchemaAlone(t *testing.T) {
	root := t.TempDir()
	j, err := OpenJournal(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.db.Exec(`UPDATE version SET schema=? WHERE id=1`, schemaVersion+5); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	j, err = OpenJournal(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	if v, _ := readSchema(context.Background(), j.db); v != schemaVersion+5 {
		t.Fatalf("schema downgraded to %d", v)
	}
}
