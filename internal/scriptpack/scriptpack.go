/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scriptpack moves a workspace's event scripts between workspaces as one zip file.
package scriptpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "texpaint/internal/log"
	"texpaint/internal/script"
	"texpaint/internal/storage"
)

// ManifestName is the plain-text index at the root of every pack.
const ManifestName = "scriptpack.txt"

// maxScriptBytes bounds one extracted script.
const maxScriptBytes = 8 << 20

// Result counts what Install did.
type Result struct {
	Installed int
	Skipped   int // already present
	Invalid   int // failed schema validation or not a .json file
}

// Export zips every .json file under <workspace>/scripts into dest. Entries keep their
// path relative to the scripts folder. An empty folder yields a pack with only the index.
func Export(root, dest string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("scriptpack"), "export").With(slog.String("workspace", root))
	if strings.TrimSpace(root) == "" || strings.TrimSpace(dest) == "" {
		return 0, errors.New("workspace and destination are required")
	}
	dir := filepath.Join(root, storage.ScriptsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure scripts dir: %w", err)
	}
	var names []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan scripts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("ensure pack dir: %w", err)
	}
	zf, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create pack: %w", err)
	}
	zw := zip.NewWriter(zf)
	if err := writePack(zw, dir, root, names); err != nil {
		_ = zw.Close()
		_ = zf.Close()
		_ = os.Remove(dest)
		l.Error("pack build failed", slog.Any("err", err))
		return 0, fmt.Errorf("build pack: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = zf.Close()
		return 0, err
	}
	if err := zf.Close(); err != nil {
		return 0, err
	}
	l.Info("script pack exported", slog.Int("scripts", len(names)), slog.String("zip", dest))
	return len(names), nil
}

func writePack(zw *zip.Writer, dir, root string, names []string) error {
	w, err := zw.Create(ManifestName)
	if err != nil {
		return err
	}
	idx := fmt.Sprintf("texpaint script pack\nCreated: %s\nWorkspace: %s\n\n%s\n",
		time.Now().Format(time.RFC3339), filepath.Base(root), strings.Join(names, "\n"))
	if _, err := io.WriteString(w, idx); err != nil {
		return err
	}
	for _, name := range names {
		if err := addFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			return err
		}
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

// Install extracts the scripts of a pack into <workspace>/scripts. Existing files are never
// overwritten, and entries that are not valid event scripts are skipped.
func Install(root, pack string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("scriptpack"), "install").With(slog.String("workspace", root))
	var res Result
	if strings.TrimSpace(root) == "" || strings.TrimSpace(pack) == "" {
		return res, errors.New("workspace and pack are required")
	}
	dir := filepath.Join(root, storage.ScriptsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("ensure scripts dir: %w", err)
	}
	r, err := zip.OpenReader(pack)
	if err != nil {
		return res, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		name, ok := safeName(f.Name)
		if !ok || !strings.EqualFold(path.Ext(name), ".json") {
			l.Warn("skip entry", slog.String("entry", f.Name))
			res.Invalid++
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing script", slog.String("path", target))
			res.Skipped++
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return res, err
		}
		if err := script.Validate(data); err != nil {
			l.Warn("skip invalid script", slog.String("entry", f.Name), slog.Any("err", err))
			res.Invalid++
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return res, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return res, err
		}
		res.Installed++
	}
	l.Info("script pack installed", slog.Int("installed", res.Installed), slog.Int("skipped", res.Skipped), slog.Int("invalid", res.Invalid))
	return res, nil
}

// safeName cleans a zip entry name and refuses absolute or parent-escaping paths.
func safeName(name string) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	name = strings.TrimPrefix(name, storage.ScriptsDirName+"/")
	if name == "" || name == "." || strings.HasPrefix(name, "..") {
		return "", false
	}
	return name, true
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxScriptBytes {
		return nil, fmt.Errorf("%s: script too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(io.LimitReader(rc, maxScriptBytes))
}
