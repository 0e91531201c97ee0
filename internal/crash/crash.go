/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI or UI into a crash report plus a PNG
// autosave of the canvas being painted.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"texpaint/internal/canvas"
	applog "texpaint/internal/log"
	"texpaint/internal/storage"
	"texpaint/internal/telemetry"
	"texpaint/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Recover captures a panic, logs it with its stack, writes a crash report and,
// when a workspace and canvas are given, autosaves the canvas into the workspace
// backups. Either argument may be nil.
//
// Usage: defer crash.Recover(ws, c)
//
// The arguments are evaluated when the defer statement runs. Callers that create
// the workspace or canvas later recover themselves and pass the value to Handle.
func Recover(ws *storage.Workspace, c *canvas.Canvas) {
	if r := recover(); r != nil {
		Handle(ws, c, r)
	}
}

// Handle reports an already recovered panic value r and exits with status 2.
func Handle(ws *storage.Workspace, c *canvas.Canvas, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(ws, c, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if ws != nil && c != nil {
		if path, err := storage.AutosaveCrashCanvas(ws, c); err != nil {
			l.Error("autosave crash canvas failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash canvas written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "texpaint crashed. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	telemetry.Shutdown()
	exitFn(2)
}

func writeReport(ws *storage.Workspace, c *canvas.Canvas, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ws != nil && ws.Root != "" {
		dir = filepath.Join(ws.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "texpaint Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ws != nil {
		_, _ = fmt.Fprintf(&buf, "Workspace: %s\n", ws.Root)
		_, _ = fmt.Fprintf(&buf, "Manifest: %s\n", ws.ManifestPath)
	}
	if c != nil {
		_, _ = fmt.Fprintf(&buf, "Canvas: %dx%d wrap=%s filter=%s seq=%d\n", c.Size(), c.Size(), c.Wrap(), c.Filter(), c.Seq())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()

	// opt-in upload, see telemetry.FromEnv
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
