/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"texpaint/internal/canvas"
	"texpaint/internal/config"
	"texpaint/internal/domain"
	"texpaint/internal/export"
	"texpaint/internal/gallery"
	"texpaint/internal/live"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
	"texpaint/internal/script"
	"texpaint/internal/scriptpack"
	"texpaint/internal/storage"
	"texpaint/internal/telemetry"
	"texpaint/internal/ui"
)

// EnvGallerySecret is the HMAC key for gallery publish tokens; unset disables publishing.
const EnvGallerySecret = "TEXPAINT_GALLERY_SECRET"

func runUI(dir string) error { return ui.Run(dir) }

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%s: %v", fs.Name(), err)
	}
	return nil
}

// openWorkspace opens dir and loads its canvas.
func openWorkspace(dir string) (*storage.Workspace, *canvas.Canvas, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, err
	}
	ws, err := storage.Open(abs)
	if err != nil {
		return nil, nil, err
	}
	tex, err := storage.LoadCanvas(ws)
	if err != nil {
		return nil, nil, err
	}
	track(ws, tex)
	return ws, tex, nil
}

func manifestOptions(m domain.Manifest) []canvas.Option {
	return []canvas.Option{canvas.WithWrap(m.Wrap), canvas.WithFilter(m.Filter), canvas.WithClearColor(m.ClearColor)}
}

func cmdInit(cfg config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	size := fs.Int("size", cfg.Canvas.TextureSize, "texture size in pixels (2-512)")
	wrap := fs.String("wrap", string(cfg.Canvas.WrapMode), "wrap mode: clamp|repeat|mirror")
	filter := fs.String("filter", string(cfg.Canvas.FilterMode), "filter mode: point|bilinear|trilinear")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageErr("init requires <dir>")
	}
	abs, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	name := filepath.Base(abs)
	if fs.NArg() > 1 {
		name = fs.Arg(1)
	}
	m := cfg.Manifest(name)
	m.TextureSize = *size
	m.Wrap, m.Filter = domain.WrapMode(*wrap), domain.FilterMode(*filter)
	if !m.Wrap.Valid() || !m.Filter.Valid() {
		return usageErr("init: invalid wrap %q or filter %q", *wrap, *filter)
	}
	applog.WithComponent("cli").Info("init workspace", slog.String("root", abs), slog.String("name", name), slog.Int("size", m.TextureSize))
	ws, err := storage.InitWorkspace(abs, m)
	if err != nil {
		return err
	}
	fmt.Println("Created workspace at", ws.Root)
	return nil
}

func cmdReplay(cfg config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	record := fs.Bool("record", false, "append the replayed events to the workspace journal")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usageErr("replay requires <script.json> and <out.png>")
	}
	sc, err := script.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	size, b, opts := cfg.Canvas.TextureSize, cfg.BrushValue(), cfg.CanvasOptions()
	var ws *storage.Workspace
	if fs.NArg() > 2 {
		abs, err := filepath.Abs(fs.Arg(2))
		if err != nil {
			return err
		}
		if ws, err = storage.Open(abs); err != nil {
			return err
		}
		size, b, opts = ws.Manifest.TextureSize, ws.Manifest.Brush, manifestOptions(ws.Manifest)
	} else if *record {
		return usageErr("replay -record needs a <workspace>")
	}
	s, err := sc.NewSession(size, b, opts...)
	if err != nil {
		return err
	}
	track(ws, s.Canvas())

	var rec *storage.Recorder
	if *record {
		ctx := context.Background()
		j, _, err := storage.OpenOrResetJournal(ctx, ws.Root)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		if rec, err = j.StartRecording(ctx, s, true); err != nil {
			return err
		}
		// the script may clear to its own colour; keep the start resumable
		if err := rec.Snapshot(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	events := sc.Events()
	n := paint.Replay(s, events)
	if rec != nil {
		if err := rec.Stop(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	out, err := export.ExportPNG(ws, s.Canvas(), fs.Arg(1), export.PNGOptions{Scale: 1})
	if err != nil {
		return err
	}
	fmt.Printf("Replayed %d of %d events from %q into %s\n", n, len(events), sc.Name, out)
	if rec != nil {
		fmt.Println("Journal session:", rec.SessionID())
	}
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	scale := fs.Int("scale", 1, "integer upscale factor (PNG)")
	tiles := fs.Int("tiles", 1, "render N x N tiles using the wrap mode (PNG)")
	preset := fs.String("preset", "", "batch export preset: web|print")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageErr("export requires <workspace>")
	}
	ws, tex, err := openWorkspace(fs.Arg(0))
	if err != nil {
		return err
	}
	if *preset != "" {
		p := export.PresetName(*preset)
		if p != export.PresetWeb && p != export.PresetPrint {
			return usageErr("export: unknown preset %q", *preset)
		}
		paths, err := export.BatchExport(ws, tex, export.BatchOptions{Preset: p, Title: ws.Manifest.Name})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println("Wrote", p)
		}
		return nil
	}
	if fs.NArg() < 2 {
		return usageErr("export requires <out.png|out.pdf> or -preset")
	}
	out := fs.Arg(1)
	var written string
	if strings.EqualFold(filepath.Ext(out), ".pdf") {
		written, err = export.ExportPDF(ws, tex, out, export.PDFOptions{Title: ws.Manifest.Name, IncludeInfo: true})
	} else {
		written, err = export.ExportPNG(ws, tex, out, export.PNGOptions{Scale: *scale, Tiles: *tiles})
	}
	if err != nil {
		return err
	}
	telemetry.Event("export", map[string]any{"format": strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), "."), "size": tex.Size()})
	fmt.Println("Wrote", written)
	return nil
}

func cmdTensor(args []string) error {
	if len(args) < 1 {
		return usageErr("tensor requires <image.png>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	t := export.DigitTensor(img)
	var sb strings.Builder
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			if x > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%.3f", t.At(x, y))
		}
		sb.WriteByte('\n')
	}
	fmt.Print(sb.String())
	return nil
}

func cmdServe(cfg config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Live.Addr, "listen address")
	advertise := fs.Bool("advertise", cfg.Live.Advertise, "announce the live view via mDNS")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usageErr("serve requires <workspace>")
	}
	ws, tex, err := openWorkspace(fs.Arg(0))
	if err != nil {
		return err
	}
	l := applog.WithOperation(applog.WithComponent("cli"), "serve")
	ctx, stop := signal.NotifyContext(applog.ContextWithWorkspace(context.Background(), ws.Root), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := paint.NewSession(tex, nil, ws.Manifest.Brush)
	stats := telemetry.NewSessionStats()
	s.OnEvent = stats.Observe
	var rec *storage.Recorder
	if cfg.Journal.Enabled {
		j, reset, err := storage.OpenOrResetJournal(ctx, ws.Root)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		if reset {
			l.WarnContext(ctx, "journal was damaged and has been reset")
		}
		if rec, err = j.StartRecording(ctx, s, cfg.Journal.SnapshotOnStrokeEnd); err != nil {
			return err
		}
		if err := rec.Snapshot(); err != nil {
			l.WarnContext(ctx, "initial snapshot failed", slog.Any("err", err))
		}
	}

	srv := live.New(s, live.Options{Addr: *addr, Advertise: *advertise, Instance: cfg.Live.Instance})
	// the first frame is published from the loop once it runs
	go func() { _ = srv.Do(ctx, func(s *paint.Session) { _ = s.Canvas().Flush() }) }()
	err = srv.ListenAndServe(ctx, func(a string) {
		fmt.Printf("Live view on http://%s/frame.png (websocket ws://%s/ws). Ctrl+C to stop.\n", a, a)
	})

	// the loop has stopped; the session is ours again
	if rec != nil {
		if jerr := rec.Stop(); jerr != nil {
			l.WarnContext(ctx, "journal had write errors", slog.Any("err", jerr))
		}
	}
	stats.Report(nil)
	if serr := storage.SaveCanvas(ws, tex); serr != nil {
		return errors.Join(err, serr)
	}
	fmt.Printf("Saved %s (%d events, %d strokes)\n", ws.CanvasPath(), stats.Events, stats.Strokes)
	return err
}

func cmdDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 2*time.Second, "how long to listen for answers")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	peers, err := live.Discover(*timeout)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("No live views found.")
		return nil
	}
	for _, p := range peers {
		fmt.Printf("%-24s %s\n", p.Instance, p.URL())
	}
	return nil
}

func cmdJournal(args []string) error {
	if len(args) < 2 {
		return usageErr("journal requires list|resume|script and <workspace>")
	}
	sub, dir := args[0], args[1]
	ctx := context.Background()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	ws, err := storage.Open(abs)
	if err != nil {
		return err
	}
	j, reset, err := storage.OpenOrResetJournal(ctx, ws.Root)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()
	if reset {
		fmt.Println("Warning: the journal was damaged; a backup was kept and a new journal started.")
	}

	pick := func(i int) (storage.SessionInfo, error) {
		if len(args) > i && args[i] != "latest" {
			return j.Session(ctx, args[i])
		}
		return j.LatestSession(ctx)
	}

	switch sub {
	case "list":
		all, err := j.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, si := range all {
			ended := "open"
			if !si.Ended.IsZero() {
				ended = si.Ended.Local().Format(time.DateTime)
			}
			fmt.Printf("%s  %s  %-19s  %3dpx  %5d events  brush %s %d\n",
				si.ID, si.Started.Local().Format(time.DateTime), ended, si.TextureSize, si.Events, si.Brush.Shape, si.Brush.Size)
		}
		return nil
	case "resume":
		si, err := pick(2)
		if err != nil {
			return err
		}
		fresh, err := ws.NewCanvas()
		if err != nil {
			return err
		}
		if err := fresh.Resize(si.TextureSize); err != nil {
			return err
		}
		track(ws, fresh)
		s := paint.NewSession(fresh, nil, si.Brush)
		n, err := j.Resume(ctx, si.ID, s)
		if err != nil {
			return err
		}
		if err := storage.SaveCanvas(ws, fresh); err != nil {
			return err
		}
		fmt.Printf("Rebuilt session %s (%d events replayed) into %s\n", si.ID, n, ws.CanvasPath())
		return nil
	case "script":
		if len(args) < 4 {
			return usageErr("journal script requires <workspace> <session> <out.json>")
		}
		si, err := pick(2)
		if err != nil {
			return err
		}
		events, err := j.Events(ctx, si.ID, 0)
		if err != nil {
			return err
		}
		sc := script.FromEvents(ws.Manifest.Name+" "+si.ID, si.TextureSize, si.Brush, events)
		if err := script.Save(args[3], sc); err != nil {
			return err
		}
		fmt.Printf("Wrote %d events to %s\n", len(events), args[3])
		return nil
	}
	return usageErr("unknown journal command %q", sub)
}

func cmdScripts(args []string) error {
	if len(args) < 3 {
		return usageErr("scripts requires pack|install, <workspace> and <zip>")
	}
	root, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	if _, err := storage.Open(root); err != nil {
		return err
	}
	switch args[0] {
	case "pack":
		n, err := scriptpack.Export(root, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Packed %d scripts into %s\n", n, args[2])
		return nil
	case "install":
		res, err := scriptpack.Install(root, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Installed %d scripts (%d already present, %d invalid)\n", res.Installed, res.Skipped, res.Invalid)
		return nil
	}
	return usageErr("unknown scripts command %q", args[0])
}

func galleryStore(cfg config.AppConfig, pw string) (*gallery.Store, error) {
	if cfg.Gallery.DSN == "" {
		return nil, fmt.Errorf("no gallery configured: set gallery.dsn or %s", config.EnvGalleryDSN)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Gallery.TimeoutMs)*time.Millisecond)
	defer cancel()
	return gallery.Open(ctx, cfg.Gallery.DSNWithPassword(pw))
}

func cmdPublish(cfg config.AppConfig, pw string, args []string) error {
	if len(args) < 2 {
		return usageErr("publish requires <workspace> and <title>")
	}
	ws, tex, err := openWorkspace(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(ws.CanvasPath())
	if errors.Is(err, os.ErrNotExist) {
		if err := storage.SaveCanvas(ws, tex); err != nil {
			return err
		}
		data, err = os.ReadFile(ws.CanvasPath())
	}
	if err != nil {
		return err
	}
	store, err := galleryStore(cfg, pw)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	author, _ := os.LookupEnv("USER")
	id, err := store.Publish(context.Background(), gallery.Entry{
		Title:       strings.Join(args[1:], " "),
		Author:      author,
		TextureSize: tex.Size(),
		Wrap:        tex.Wrap(),
		Filter:      tex.Filter(),
		PNG:         data,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Published as #%d\n", id)
	return nil
}

func cmdGallery(cfg config.AppConfig, pw string, args []string) error {
	if len(args) < 1 {
		return usageErr("gallery requires list or serve")
	}
	switch args[0] {
	case "list":
		store, err := galleryStore(cfg, pw)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		items, err := store.List(context.Background(), 50)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Printf("#%-5d %-32s %3dpx %-7s %-9s %s\n", it.ID, it.Title, it.TextureSize, it.Wrap, it.Filter, it.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	case "serve":
		fs := flag.NewFlagSet("gallery serve", flag.ContinueOnError)
		addr := fs.String("addr", "127.0.0.1:8090", "listen address")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		store, err := galleryStore(cfg, pw)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return serveGallery(store, *addr, os.Getenv(EnvGallerySecret))
	}
	return usageErr("unknown gallery command %q", args[0])
}

func serveGallery(b gallery.Backend, addr, secret string) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "gallery_serve")
	if secret == "" {
		l.Warn("publishing disabled", slog.String("env", EnvGallerySecret))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hs := &http.Server{Addr: addr, Handler: gallery.NewHandler(b, secret), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	l.Info("gallery listening", slog.String("addr", addr))
	fmt.Printf("Gallery API on http://%s/api/gallery. Ctrl+C to stop.\n", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
