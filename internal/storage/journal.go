/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
)

// language=SQL
// dialect=SQLite
const insertSessionSQL = `INSERT INTO sessions(id, started_at, texture_size, brush) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const endSessionSQL = `UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`

// language=SQL
// dialect=SQLite
const insertEventSQL = `INSERT INTO events(session_id, seq, ts, kind, payload, accepted, stamps) VALUES (?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectEventsSQL = `SELECT payload FROM events WHERE session_id = ? AND seq > ? AND seq <= ? ORDER BY seq`

// language=SQL
// dialect=SQLite
const listSessionsSQL = `SELECT s.id, s.started_at, COALESCE(s.ended_at, ''), s.texture_size, s.brush,
	(SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
FROM sessions s ORDER BY s.started_at, s.rowid`

// ErrNoSession is returned when a session id is unknown or the journal is empty.
var ErrNoSession = errors.New("no such paint session")

// Journal is the append-only record of paint sessions in a workspace.
type Journal struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// SessionInfo summarizes one recorded session.
type SessionInfo struct {
	ID          string
	Started     time.Time
	Ended       time.Time // zero while open or after a crash
	TextureSize int
	Brush       domain.Brush
	Events      int
}

// OpenJournal opens (creating if needed) the journal of the workspace at root.
func OpenJournal(root string) (*Journal, error) {
	db, err := InitOrOpenJournalDB(root)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, path: JournalPath(root), log: applog.WithComponent("journal")}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Check verifies the database file. On corruption a copy is saved to .texpaint/backups
// before the error is returned.
func (j *Journal) Check(ctx context.Context) error {
	err := checkIntegrity(ctx, j.db)
	if err == nil {
		return nil
	}
	if bak, berr := backupJournalFile(j.path); berr == nil {
		j.log.Error("journal integrity check failed", slog.Any("err", err), slog.String("backup", bak))
		return fmt.Errorf("%w (backup at %s)", err, bak)
	}
	return err
}

// BeginSession registers a new session and returns its id.
func (j *Journal) BeginSession(ctx context.Context, textureSize int, b domain.Brush) (string, error) {
	id := uuid.NewString()
	bj, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	if _, err := j.db.ExecContext(ctx, insertSessionSQL, id, time.Now().UTC().Format(time.RFC3339Nano), textureSize, string(bj)); err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	j.log.Info("session started", slog.String("session", id), slog.Int("size", textureSize))
	return id, nil
}

// EndSession stamps the end time. Ending twice is a no-op.
func (j *Journal) EndSession(ctx context.Context, id string) error {
	_, err := j.db.ExecContext(ctx, endSessionSQL, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// Append stores one event with its outcome. seq must increase within a session.
func (j *Journal) Append(ctx context.Context, sessionID string, seq int, ev paint.Event, out paint.Outcome) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, insertEventSQL, sessionID, seq, time.Now().UTC().Format(time.RFC3339Nano),
		string(ev.Kind), string(payload), boolInt(out.Accepted), out.Stamps)
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	return nil
}

// Events returns the recorded events of a session with seq > after, in order.
func (j *Journal) Events(ctx context.Context, sessionID string, after int) ([]paint.Event, error) {
	return j.eventsBetween(ctx, sessionID, after, math.MaxInt32)
}

func (j *Journal) eventsBetween(ctx context.Context, sessionID string, after, upTo int) ([]paint.Event, error) {
	rows, err := j.db.QueryContext(ctx, selectEventsSQL, sessionID, after, upTo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []paint.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev paint.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Sessions lists all sessions, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := j.db.QueryContext(ctx, listSessionsSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SessionInfo
	for rows.Next() {
		var (
			si             SessionInfo
			started, ended string
			brush          string
		)
		if err := rows.Scan(&si.ID, &started, &ended, &si.TextureSize, &brush, &si.Events); err != nil {
			return nil, err
		}
		si.Started, _ = time.Parse(time.RFC3339Nano, started)
		if ended != "" {
			si.Ended, _ = time.Parse(time.RFC3339Nano, ended)
		}
		if err := json.Unmarshal([]byte(brush), &si.Brush); err != nil {
			j.log.Warn("session brush unreadable", slog.String("session", si.ID), slog.Any("err", err))
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// LatestSession returns the most recently started session.
func (j *Journal) LatestSession(ctx context.Context) (SessionInfo, error) {
	all, err := j.Sessions(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(all) == 0 {
		return SessionInfo{}, ErrNoSession
	}
	return all[len(all)-1], nil
}

// Session looks up one session by id.
func (j *Journal) Session(ctx context.Context, id string) (SessionInfo, error) {
	all, err := j.Sessions(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return SessionInfo{}, fmt.Errorf("%w: %s", ErrNoSession, id)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// OpenOrResetJournal opens the journal and verifies it. A journal that cannot be opened
// or fails the integrity check is copied to .texpaint/backups and replaced by an empty one.
// The bool reports whether a reset happened.
func OpenOrResetJournal(ctx context.Context, root string) (*Journal, bool, error) {
	l := applog.WithOperation(applog.WithComponent("journal"), "open_or_reset").With(slog.String("root", root))
	j, err := OpenJournal(root)
	if err == nil {
		if err = j.Check(ctx); err == nil {
			return j, false, nil
		}
		_ = j.Close()
	} else if bak, berr := backupJournalFile(JournalPath(root)); berr == nil {
		l.Warn("journal unreadable; backed up", slog.String("backup", bak))
	}
	l.Error("resetting journal", slog.Any("err", err))
	path := JournalPath(root)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if rerr := os.Remove(p); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return nil, false, fmt.Errorf("remove damaged journal: %w", rerr)
		}
	}
	j, err = OpenJournal(root)
	if err != nil {
		return nil, false, err
	}
	return j, true, nil
}
