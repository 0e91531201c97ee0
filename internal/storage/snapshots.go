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
	"errors"
	"fmt"
	"time"

	"texpaint/internal/canvas"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(session_id, seq, ts, size, blob) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT seq, ts, size, blob FROM snapshots WHERE session_id = ? ORDER BY seq DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT seq, ts, size, length(blob) FROM snapshots WHERE session_id = ? ORDER BY seq DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE session_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE session_id = ? ORDER BY seq DESC, id DESC LIMIT ?
)`

// ErrNoSnapshot is returned when a session has no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotInfo describes a stored snapshot without its pixels.
type SnapshotInfo struct {
	Seq   int // last event sequence number included in the snapshot
	TS    time.Time
	Size  int
	Bytes int // compressed
}

// SaveSnapshot stores the full canvas, zlib-compressed, tagged with the last applied event seq.
func (j *Journal) SaveSnapshot(ctx context.Context, sessionID string, seq int, c *canvas.Canvas) error {
	raw, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	blob, err := compressBlob(raw)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	_, err = j.db.ExecContext(ctx, insertSnapshotSQL, sessionID, seq, time.Now().UTC().Format(time.RFC3339Nano), c.Size(), blob)
	return err
}

// RestoreLatest loads the newest snapshot of the session into c (resizing it as needed)
// and returns its metadata. ErrNoSnapshot when there is none.
func (j *Journal) RestoreLatest(ctx context.Context, sessionID string, c *canvas.Canvas) (SnapshotInfo, error) {
	var (
		info  SnapshotInfo
		tsStr string
		blob  []byte
	)
	err := j.db.QueryRowContext(ctx, selectLatestSnapshotSQL, sessionID).Scan(&info.Seq, &tsStr, &info.Size, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return info, ErrNoSnapshot
	}
	if err != nil {
		return info, err
	}
	info.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	info.Bytes = len(blob)
	raw, err := decompressBlob(blob)
	if err != nil {
		return info, err
	}
	if err := c.UnmarshalBinary(raw); err != nil {
		return info, err
	}
	return info, nil
}

// ListSnapshots returns up to limit most recent snapshots of a session.
func (j *Journal) ListSnapshots(ctx context.Context, sessionID string, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, listSnapshotsSQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SnapshotInfo
	for rows.Next() {
		var (
			si    SnapshotInfo
			tsStr string
		)
		if err := rows.Scan(&si.Seq, &tsStr, &si.Size, &si.Bytes); err != nil {
			return nil, err
		}
		si.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, si)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots for the session and deletes older ones.
func (j *Journal) PruneSnapshots(ctx context.Context, sessionID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, pruneOldSnapshotsSQL, sessionID, sessionID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
