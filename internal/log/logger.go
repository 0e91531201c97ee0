/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger for texpaint: a compact console
// format (or JSON), an optional JSON file rotated by lumberjack, and records tagged
// with component, op, and the workspace or paint session found in the context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"texpaint/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "TEXPAINT_LOG_LEVEL"  // debug|info|warn|error
	EnvFormat = "TEXPAINT_LOG_FORMAT" // console|json
	EnvSource = "TEXPAINT_LOG_SOURCE" // true adds file:line
	EnvFile   = "TEXPAINT_LOG_FILE"   // rotated JSON log file
)

// Options controls Init. The zero value logs INFO to the console.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

// rotation limits for the log file
const (
	fileMaxMB      = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the application logger, initialising it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l == nil {
		Init(FromEnv())
		mu.RLock()
		l = current
		mu.RUnlock()
	}
	return l
}

// Init replaces the application logger and slog.Default.
func Init(opts Options) { initTo(os.Stderr, opts) }

func initTo(console io.Writer, opts Options) {
	lvl := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var hs []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		hs = append(hs, slog.NewJSONHandler(console, hopts))
	} else {
		hs = append(hs, &consoleHandler{w: console, level: lvl, source: opts.AddSource, mu: new(sync.Mutex)})
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: fileMaxMB, MaxBackups: fileMaxBackups, MaxAge: fileMaxAgeDays, Compress: true}
		hs = append(hs, slog.NewJSONHandler(w, hopts))
	}
	var h slog.Handler = fanout(hs)
	if len(hs) == 1 {
		h = hs[0]
	}

	l := slog.New(contextAttrs{h}).With(
		slog.String("app", "texpaint"),
		slog.String("ver", version.Version),
	)
	mu.Lock()
	current = l
	mu.Unlock()
	slog.SetDefault(l)
}

// FromEnv reads Options from the TEXPAINT_LOG_* variables.
func FromEnv() Options {
	src, _ := strconv.ParseBool(os.Getenv(EnvSource))
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: src,
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// WithComponent returns the application logger tagged component=name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with op=op.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// parseLevel accepts slog level names (case-insensitive, "DEBUG+2" style offsets) and
// "warning". Anything else is INFO.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type (
	workspaceKey struct{}
	sessionKey   struct{}
)

// ContextWithWorkspace makes records logged with ctx carry workspace=<dir>.
func ContextWithWorkspace(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, dir)
}

// ContextWithSession makes records logged with ctx carry session=<id> (a journal session).
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// contextAttrs copies the workspace and session tags from the context onto each record.
type contextAttrs struct{ slog.Handler }

func (c contextAttrs) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		ws, _ := ctx.Value(workspaceKey{}).(string)
		id, _ := ctx.Value(sessionKey{}).(string)
		if ws != "" || id != "" {
			r = r.Clone()
			if ws != "" {
				r.AddAttrs(slog.String("workspace", ws))
			}
			if id != "" {
				r.AddAttrs(slog.String("session", id))
			}
		}
	}
	return c.Handler.Handle(ctx, r)
}

func (c contextAttrs) WithAttrs(as []slog.Attr) slog.Handler {
	return contextAttrs{c.Handler.WithAttrs(as)}
}

func (c contextAttrs) WithGroup(name string) slog.Handler {
	return contextAttrs{c.Handler.WithGroup(name)}
}

// fanout sends every record to all handlers and returns the first error.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// consoleHandler writes one line per record:
//
//	15:04:05.000 INF [component] message key=value ... src=file:line
//
// The component attribute moves into the bracket; app and ver are left out.
type consoleHandler struct {
	w         io.Writer
	level     slog.Level
	source    bool
	component string
	prefix    string // open groups, dot separated, with a trailing dot
	attrs     []byte // preformatted " key=value" pairs
	mu        *sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 160)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf = ts.AppendFormat(buf, "15:04:05.000")
	buf = append(buf, ' ')
	buf = append(buf, levelTag(r.Level)...)
	comp := h.component
	var rest []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.prefix == "" {
			comp = a.Value.String()
		} else {
			rest = append(rest, a)
		}
		return true
	})
	if comp != "" {
		buf = append(buf, " ["...)
		buf = append(buf, comp...)
		buf = append(buf, ']')
	}
	if r.Message != "" {
		buf = append(buf, ' ')
		buf = append(buf, r.Message...)
	}
	buf = append(buf, h.attrs...)
	for _, a := range rest {
		buf = appendAttr(buf, h.prefix, a)
	}
	if h.source {
		if src := sourceOf(r); src != "" {
			buf = append(buf, " src="...)
			buf = append(buf, src...)
		}
	}
	buf = append(buf, '\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(as []slog.Attr) slog.Handler {
	n := *h
	n.attrs = append([]byte(nil), h.attrs...)
	for _, a := range as {
		switch {
		case h.prefix == "" && a.Key == "component":
			n.component = a.Value.String()
		case h.prefix == "" && (a.Key == "app" || a.Key == "ver"):
		default:
			n.attrs = appendAttr(n.attrs, h.prefix, a)
		}
	}
	return &n
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := *h
	n.prefix = h.prefix + name + "."
	return &n
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			buf = appendAttr(buf, prefix+a.Key+".", g)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\"=") {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		return append(buf, v.String()...)
	}
}

// sourceOf formats the caller recorded in r as file:line.
func sourceOf(r slog.Record) string {
	if r.PC == 0 {
		return ""
	}
	f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
	if f.File == "" {
		return ""
	}
	return filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}
