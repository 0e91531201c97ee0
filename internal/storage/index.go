/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "texpaint/internal/log"
	"texpaint/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// JournalDirName holds per-workspace database files under the workspace root.
	JournalDirName  = ".texpaint"
	JournalFileName = "journal.sqlite"
)

// JournalPath returns the full path to the workspace's journal database file.
func JournalPath(root string) string {
	return filepath.Join(root, JournalDirName, JournalFileName)
}

// sqliteDSN opens path with a busy timeout so a second process waits instead of failing.
func sqliteDSN(path string) string {
	return "file:" + filepath.ToSlash(path) + "?cache=shared&_pragma=busy_timeout(5000)"
}

// language=SQL
// dialect=SQLite
const versionDDL = `CREATE TABLE IF NOT EXISTS version (
	id         INTEGER PRIMARY KEY CHECK(id=1),
	schema     INTEGER NOT NULL,
	app        TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// journalDDL is the v1 layout, applied idempotently on every open. Later versions
// only add to it through migrations.
var journalDDL = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT    PRIMARY KEY,
		started_at   TEXT    NOT NULL,
		ended_at     TEXT,
		texture_size INTEGER NOT NULL,
		brush        TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY,
		session_id TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		ts         TEXT    NOT NULL,
		kind       TEXT    NOT NULL,
		payload    TEXT    NOT NULL,
		accepted   INTEGER NOT NULL,
		stamps     INTEGER NOT NULL DEFAULT 0,
		UNIQUE(session_id, seq),
		FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id         INTEGER PRIMARY KEY,
		session_id TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		ts         TEXT    NOT NULL,
		size       INTEGER NOT NULL,
		blob       BLOB    NOT NULL,
		FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_session_seq ON snapshots(session_id, seq)`,
}

// migrations[i] upgrades a journal from schema i+1 to i+2.
var migrations = [][]string{
	{
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(session_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
	},
}

// schemaVersion is the journal layout this binary writes.
var schemaVersion = len(migrations) + 1

// InitOrOpenJournalDB ensures that the journal exists at .texpaint/journal.sqlite,
// opens it in WAL mode and brings its schema up to date. Callers close the returned *sql.DB.
func InitOrOpenJournalDB(root string) (*sql.DB, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "journal_init").With(slog.String("root", root))
	if err := os.MkdirAll(filepath.Join(root, JournalDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", JournalDirName, err)
	}
	path := JournalPath(root)
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; the journal is appended from a single paint loop
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := prepareJournal(ctx, db); err != nil {
		_ = db.Close()
		l.Error("journal not usable", slog.Any("err", err))
		return nil, err
	}
	l.Debug("journal ready", slog.String("path", path), slog.Int("schema", schemaVersion))
	return db, nil
}

func prepareJournal(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, versionDDL); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	for _, q := range journalDDL {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create journal schema: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	cur, err := readSchema(ctx, db)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh file starts at v1 and migrates like any old journal
		if _, err := db.ExecContext(ctx, `INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`,
			version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		cur = 1
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// written by a newer binary; leave it alone
		return nil
	}
	for ; cur < schemaVersion; cur++ {
		if err := migrate(ctx, db, cur+1, migrations[cur-1]); err != nil {
			return err
		}
	}
	_, err = db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now)
	return err
}

func readSchema(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func migrate(ctx context.Context, db *sql.DB, to int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", to, err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration %d: %w", to, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=? WHERE id=1`, to); err != nil {
		return fmt.Errorf("migration %d: %w", to, err)
	}
	return tx.Commit()
}

// checkIntegrity runs PRAGMA quick_check and reports anything but "ok".
func checkIntegrity(ctx context.Context, db *sql.DB) error {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("journal corrupt: %s", chk)
	}
	return nil
}

// backupJournalFile copies the journal into .texpaint/backups under a timestamped name.
func backupJournalFile(path string) (string, error) {
	bdir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", err
	}
	bak := filepath.Join(bdir, filepath.Base(path)+"."+time.Now().Format("20060102-150405")+".bak")
	return bak, copyFile(path, bak)
}
