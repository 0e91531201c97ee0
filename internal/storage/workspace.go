/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
)

const (
	ManifestFileName = "texpaint.json"
	CanvasFileName   = "canvas.png"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"
	ScriptsDirName   = "scripts"
)

var standardSubDirs = []string{
	ScriptsDirName,
	ExportsDirName,
	BackupsDirName,
}

// Workspace keeps track of the workspace state loaded/saved from disk.
// Root is the directory containing texpaint.json and subfolders.
type Workspace struct {
	Root         string
	ManifestPath string
	Manifest     domain.Manifest
}

// InitWorkspace creates a new workspace directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the manifest transactionally.
func InitWorkspace(root string, m domain.Manifest) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := canvas.ValidateSize(m.TextureSize); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	if m.Created.IsZero() {
		m.Created = time.Now().UTC()
	}
	ws := &Workspace{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Manifest:     m,
	}
	if err := Save(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Open loads an existing workspace from the given root directory.
// If the current manifest cannot be read or parsed, it will attempt the last backup.
func Open(root string) (*Workspace, error) {
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err != nil {
		m, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open manifest: %w; backup attempt: %v", err, berr)
		}
		return &Workspace{Root: root, ManifestPath: mpath, Manifest: *m}, nil
	}
	var m domain.Manifest
	if uerr := json.Unmarshal(b, &m); uerr != nil {
		bm, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse manifest: %w; backup attempt: %v", uerr, berr)
		}
		return &Workspace{Root: root, ManifestPath: mpath, Manifest: *bm}, nil
	}
	return &Workspace{Root: root, ManifestPath: mpath, Manifest: m}, nil
}

// OpenOrInit opens the workspace at root, or creates it with m when root has no
// manifest yet. The bool reports whether a new workspace was created.
func OpenOrInit(root string, m domain.Manifest) (*Workspace, bool, error) {
	if _, err := os.Stat(filepath.Join(root, ManifestFileName)); err == nil {
		ws, err := Open(root)
		return ws, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	ws, err := InitWorkspace(root, m)
	return ws, err == nil, err
}

// Save writes ws.Manifest to disk with transactional semantics
// and a timestamped backup of the previous manifest (if present).
func Save(ws *Workspace) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if ws.Root == "" || ws.ManifestPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	ws.Manifest.Updated = time.Now().UTC()
	data, err := json.MarshalIndent(ws.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := backupCurrent(ws.Root, ws.ManifestPath); err != nil {
		return fmt.Errorf("backup current manifest: %w", err)
	}
	return replaceFile(ws.ManifestPath, data)
}

// CanvasPath returns <root>/canvas.png.
func (ws *Workspace) CanvasPath() string { return filepath.Join(ws.Root, CanvasFileName) }

// NewCanvas builds an empty canvas from the manifest settings.
func (ws *Workspace) NewCanvas(opts ...canvas.Option) (*canvas.Canvas, error) {
	m := ws.Manifest
	base := []canvas.Option{canvas.WithClearColor(m.ClearColor)}
	if m.Wrap != "" {
		base = append(base, canvas.WithWrap(m.Wrap))
	}
	if m.Filter != "" {
		base = append(base, canvas.WithFilter(m.Filter))
	}
	return canvas.New(m.TextureSize, append(base, opts...)...)
}

// LoadCanvas builds the canvas and fills it from canvas.png when one exists.
func LoadCanvas(ws *Workspace, opts ...canvas.Option) (*canvas.Canvas, error) {
	c, err := ws.NewCanvas(opts...)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(ws.CanvasPath())
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", CanvasFileName, err)
	}
	if err := c.LoadImage(img); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveCanvas writes the canvas to canvas.png (backup of the previous file first) and
// records its size in the manifest.
func SaveCanvas(ws *Workspace, c *canvas.Canvas) error {
	data, err := encodePNG(c)
	if err != nil {
		return err
	}
	if err := backupCurrent(ws.Root, ws.CanvasPath()); err != nil {
		return fmt.Errorf("backup canvas: %w", err)
	}
	if err := replaceFile(ws.CanvasPath(), data); err != nil {
		return err
	}
	if ws.Manifest.TextureSize != c.Size() {
		ws.Manifest.TextureSize = c.Size()
		return Save(ws)
	}
	return nil
}

// AutosaveCrashCanvas writes the canvas to backups/canvas-crash-<stamp>.png.
// It never touches canvas.png, so a half-painted state cannot clobber the last save.
func AutosaveCrashCanvas(ws *Workspace, c *canvas.Canvas) (string, error) {
	if ws == nil || c == nil {
		return "", errors.New("nothing to autosave")
	}
	data, err := encodePNG(c)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(ws.Root, BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "canvas-crash-"+time.Now().Format("20060102-150405")+".png")
	return path, writeFileSync(path, data)
}

func encodePNG(c *canvas.Canvas) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// backupCurrent copies path (if present) to backups/<name>.<stamp>.bak.
func backupCurrent(root, path string) error {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil
	}
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	bname := fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp)
	return copyFile(path, filepath.Join(bdir, bname))
}

// replaceFile writes to a temp file in the same directory, then renames over target.
func replaceFile(target string, data []byte) error {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp %s: %w", base, werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", base, rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup tries to open the latest timestamped manifest backup.
func openFromLatestBackup(root string) (*domain.Manifest, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &m, nil
}
