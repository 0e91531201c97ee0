/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package gallery publishes finished canvases to a shared Postgres database and
// serves them over a small HTTP API.
package gallery

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned for unknown gallery ids.
var ErrNotFound = errors.New("gallery item not found")

// maxPNGBytes bounds a published image (a 512x512 RGBA PNG stays well below this).
const maxPNGBytes = 4 << 20

// Item describes a published canvas without its image bytes.
type Item struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Author      string            `json:"author,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
	TextureSize int               `json:"texture_size"`
	Wrap        domain.WrapMode   `json:"wrap"`
	Filter      domain.FilterMode `json:"filter"`
	Bytes       int               `json:"bytes"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Entry is a canvas to publish.
type Entry struct {
	Title       string
	Author      string
	SessionID   string
	TextureSize int
	Wrap        domain.WrapMode
	Filter      domain.FilterMode
	PNG         []byte
}

// Backend is the storage the HTTP API needs; *Store implements it.
type Backend interface {
	Publish(ctx context.Context, e Entry) (int64, error)
	List(ctx context.Context, limit int) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, []byte, error)
	Ping(ctx context.Context) error
}

// Store is the Postgres-backed gallery.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to Postgres, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("gallery dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{db: db, log: applog.WithComponent("gallery")}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Validate checks an entry before it is stored.
func (e Entry) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if e.TextureSize < 2 || e.TextureSize > 512 {
		errs = append(errs, fmt.Errorf("texture size %d out of range", e.TextureSize))
	}
	if len(e.PNG) == 0 || len(e.PNG) > maxPNGBytes {
		errs = append(errs, fmt.Errorf("png size %d out of range", len(e.PNG)))
	} else if !strings.HasPrefix(string(e.PNG[:min(8, len(e.PNG))]), "\x89PNG") {
		errs = append(errs, errors.New("image is not a PNG"))
	}
	return errors.Join(errs...)
}

// language=PostgreSQL
const insertItemSQL = `INSERT INTO gallery_items(title, author, session_id, texture_size, wrap_mode, filter_mode, png)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

// language=PostgreSQL
const listItemsSQL = `SELECT id, title, author, session_id, texture_size, wrap_mode, filter_mode, octet_length(png), created_at
FROM gallery_items ORDER BY created_at DESC, id DESC LIMIT $1`

// language=PostgreSQL
const getItemSQL = `SELECT id, title, author, session_id, texture_size, wrap_mode, filter_mode, octet_length(png), created_at, png
FROM gallery_items WHERE id = $1`

// Publish stores e and returns its id.
func (s *Store) Publish(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.Wrap == "" {
		e.Wrap = domain.WrapClamp
	}
	if e.Filter == "" {
		e.Filter = domain.FilterPoint
	}
	var id int64
	err := s.db.QueryRowContext(ctx, insertItemSQL, e.Title, e.Author, e.SessionID, e.TextureSize, string(e.Wrap), string(e.Filter), e.PNG).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	s.log.Info("canvas published", slog.Int64("id", id), slog.String("title", e.Title), slog.Int("bytes", len(e.PNG)))
	return id, nil
}

// List returns up to limit items, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listItemsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Get returns one item with its PNG.
func (s *Store) Get(ctx context.Context, id int64) (Item, []byte, error) {
	var (
		it         Item
		wrap, filt string
		png        []byte
	)
	err := s.db.QueryRowContext(ctx, getItemSQL, id).Scan(&it.ID, &it.Title, &it.Author, &it.SessionID, &it.TextureSize, &wrap, &filt, &it.Bytes, &it.CreatedAt, &png)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Item{}, nil, err
	}
	it.Wrap, it.Filter = domain.WrapMode(wrap), domain.FilterMode(filt)
	return it, png, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanItem(r scanner) (Item, error) {
	var (
		it         Item
		wrap, filt string
	)
	if err := r.Scan(&it.ID, &it.Title, &it.Author, &it.SessionID, &it.TextureSize, &wrap, &filt, &it.Bytes, &it.CreatedAt); err != nil {
		return Item{}, err
	}
	it.Wrap, it.Filter = domain.WrapMode(wrap), domain.FilterMode(filt)
	return it, nil
}

// applyMigrations applies embedded SQL migrations in filename order and records
// each in schema_migrations.
func (s *Store) applyMigrations(ctx context.Context) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}
	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		s.log.Info("applying migration", slog.String("file", fname))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
