//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	fcanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"texpaint/internal/canvas"
	"texpaint/internal/config"
	"texpaint/internal/crash"
	"texpaint/internal/domain"
	"texpaint/internal/export"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
	"texpaint/internal/storage"
	"texpaint/internal/telemetry"
	"texpaint/internal/undo"
	"texpaint/internal/version"
)

// Run opens the paint window on the workspace at workspaceDir, creating it from the
// user configuration when it does not exist. An empty dir uses ~/texpaint.
func Run(workspaceDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	var (
		ws  *storage.Workspace
		tex *canvas.Canvas
	)
	defer func() {
		if r := recover(); r != nil {
			crash.Handle(ws, tex, r)
		}
	}()

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config not usable, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	applog.Init(cfg.LogOptions())
	l = applog.WithComponent("ui")
	if strings.TrimSpace(workspaceDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		workspaceDir = filepath.Join(home, "texpaint")
	}
	ws, created, err := storage.OpenOrInit(workspaceDir, cfg.Manifest(filepath.Base(workspaceDir)))
	if err != nil {
		return err
	}
	if created {
		l.Info("workspace created", slog.String("root", ws.Root))
	}
	tex, err = storage.LoadCanvas(ws)
	if err != nil {
		return err
	}

	sess := paint.NewSession(tex, nil, ws.Manifest.Brush)
	ctl := NewController(sess)
	stats := telemetry.NewSessionStats()
	history, err := undo.NewCanvasHistory(tex, undo.Config{MaxBytes: 64 << 20, MaxDepth: 50})
	if err != nil {
		return err
	}
	dirty := false
	sess.OnEvent = paint.Observe(stats.Observe, history.Observe, func(_ paint.Event, out paint.Outcome) {
		if out.Stamps > 0 {
			dirty = true
		}
	})

	ctx := context.Background()
	var rec *storage.Recorder
	if cfg.Journal.Enabled {
		j, reset, err := storage.OpenOrResetJournal(ctx, ws.Root)
		if err != nil {
			l.Warn("journal unavailable", slog.Any("err", err))
		} else {
			defer func() { _ = j.Close() }()
			if reset {
				l.Warn("journal was damaged and has been reset")
			}
			if rec, err = j.StartRecording(ctx, sess, cfg.Journal.SnapshotOnStrokeEnd); err != nil {
				l.Warn("journal recording failed", slog.Any("err", err))
			} else if err := rec.Snapshot(); err != nil {
				l.Warn("initial snapshot failed", slog.Any("err", err))
			}
		}
	}

	fyneApp := app.NewWithID("texpaint")
	w := fyneApp.NewWindow("texpaint - " + ws.Manifest.Name)
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 900), 480)
	winH := max(prefs.IntWithFallback("window.height", 760), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("")
	pc := NewPaintCanvas(ctl)
	refresh := func() { status.SetText(ctl.Status()) }
	pc.OnChange = refresh

	// undo restores pixels outside the event stream; a snapshot keeps the journal resumable
	afterHistory := func(ok bool, err error) {
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if ok {
			dirty = true
			if rec != nil {
				if err := rec.Snapshot(); err != nil {
					l.Warn("journal snapshot failed", slog.Any("err", err))
				}
			}
		}
		refresh()
	}
	doUndo := func() {
		if sess.State() == paint.Idle {
			afterHistory(history.Undo())
		}
	}
	doRedo := func() {
		if sess.State() == paint.Idle {
			afterHistory(history.Redo())
		}
	}

	save := func() {
		if err := storage.SaveCanvas(ws, tex); err != nil {
			dialog.ShowError(err, w)
			return
		}
		dirty = false
		status.SetText("Saved " + storage.CanvasFileName)
	}

	swatches := container.NewHBox()
	for _, sw := range Palette {
		swatches.Add(widget.NewButton(sw.Name, func() {
			ctl.SetColor(sw.Color)
			refresh()
		}))
	}
	shapeBtn := widget.NewButton("Circle/Quad", func() {
		ctl.ToggleShape()
		refresh()
	})
	sizeSelect := widget.NewSelect([]string{"32", "64", "128", "256", "512"}, func(v string) {
		n, _ := strconv.Atoi(v)
		if n == tex.Size() {
			return
		}
		if out := ctl.Resize(n); out.Err != nil {
			dialog.ShowError(out.Err, w)
		}
		dirty = true
		refresh()
	})
	sizeSelect.PlaceHolder = "Texture size"
	clearBtn := widget.NewButton("Clear", func() {
		if err := ctl.Clear(ws.Manifest.ClearColor); err != nil {
			l.Warn("flush after clear failed", slog.Any("err", err))
		}
		if err := history.Commit(); err != nil {
			l.Warn("undo capture failed", slog.Any("err", err))
		}
		afterHistory(true, nil)
	})
	toolbar := container.NewVBox(
		swatches,
		container.NewHBox(shapeBtn, sizeSelect, clearBtn,
			widget.NewButton("Undo", doUndo), widget.NewButton("Redo", doRedo), widget.NewButton("Save", save)),
	)
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, pc))

	exportItem := fyne.NewMenuItem("Export PNG…", func() {
		d := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			if !strings.HasSuffix(strings.ToLower(outPath), ".png") {
				outPath += ".png"
			}
			written, err := export.ExportPNG(ws, tex, outPath, export.PNGOptions{Scale: 1})
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			dialog.ShowInformation("Export", "Exported to "+written, w)
		}, w)
		d.SetFileName("texture.png")
		d.SetFilter(fstorage.NewExtensionFileFilter([]string{".png"}))
		d.Show()
	})
	exportPDFItem := fyne.NewMenuItem("Export PDF", func() {
		written, err := export.ExportPDF(ws, tex, "texture.pdf", export.PDFOptions{Title: ws.Manifest.Name, IncludeInfo: true})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		dialog.ShowInformation("Export", "Exported to "+written, w)
	})
	saveItem := fyne.NewMenuItem("Save", save)
	fileMenu := fyne.NewMenu("File", saveItem, fyne.NewMenuItemSeparator(), exportItem, exportPDFItem)
	editMenu := fyne.NewMenu("Edit", fyne.NewMenuItem("Undo", doUndo), fyne.NewMenuItem("Redo", doRedo))
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { doUndo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { doRedo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { save() })

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if !dirty {
			w.Close()
			return
		}
		dialog.ShowConfirm("Unsaved changes", "Save the canvas before closing?", func(ok bool) {
			if ok {
				save()
			}
			w.Close()
		}, w)
	})

	refresh()
	if err := tex.Flush(); err != nil {
		l.Warn("initial flush failed", slog.Any("err", err))
	}
	w.ShowAndRun()
	pc.Detach()

	if rec != nil {
		if err := rec.Stop(); err != nil {
			l.Warn("journal had write errors", slog.Any("err", err))
		}
	}
	stats.Report(nil)
	l.Info("UI closed", slog.Int("events", stats.Events), slog.Int("strokes", stats.Strokes))
	return nil
}

// PaintCanvas shows the texture as the largest centred square and forwards mouse
// input to its Controller. It is a canvas.Surface: every flush replaces the image.
type PaintCanvas struct {
	widget.BaseWidget
	ctl    *Controller
	img    *fcanvas.Image
	detach func()

	// OnChange runs on the UI goroutine after a new frame is shown.
	OnChange func()
}

var (
	_ desktop.Mouseable = (*PaintCanvas)(nil)
	_ fyne.Draggable    = (*PaintCanvas)(nil)
	_ fyne.Scrollable   = (*PaintCanvas)(nil)
	_ canvas.Surface    = (*PaintCanvas)(nil)
)

// NewPaintCanvas creates the widget and attaches it to the session's canvas.
func NewPaintCanvas(ctl *Controller) *PaintCanvas {
	tex := ctl.Session().Canvas()
	pc := &PaintCanvas{ctl: ctl}
	pc.img = fcanvas.NewImageFromImage(tex.Image())
	pc.img.FillMode = fcanvas.ImageFillStretch
	pc.img.ScaleMode = scaleMode(tex.Filter())
	pc.ExtendBaseWidget(pc)
	pc.detach = tex.Attach(pc)
	return pc
}

// Detach stops presenting canvas frames; call it once the window is gone.
func (pc *PaintCanvas) Detach() { pc.detach() }

func scaleMode(f domain.FilterMode) fcanvas.ImageScale {
	if f == domain.FilterPoint {
		return fcanvas.ImageScalePixels
	}
	return fcanvas.ImageScaleSmooth
}

// Present implements canvas.Surface.
func (pc *PaintCanvas) Present(f *canvas.Frame) error {
	fyne.Do(func() {
		pc.img.Image = f.Pixels
		pc.img.ScaleMode = scaleMode(f.Filter)
		pc.img.Refresh()
		if pc.OnChange != nil {
			pc.OnChange()
		}
	})
	return nil
}

func (pc *PaintCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	pc.ctl.Press(float64(e.Position.X), float64(e.Position.Y))
}

func (pc *PaintCanvas) MouseUp(*desktop.MouseEvent) { pc.ctl.Release() }

func (pc *PaintCanvas) Dragged(e *fyne.DragEvent) {
	pc.ctl.Move(float64(e.Position.X), float64(e.Position.Y))
}

func (pc *PaintCanvas) DragEnd() { pc.ctl.Release() }

// Scrolled resizes the brush one step per wheel notch.
func (pc *PaintCanvas) Scrolled(e *fyne.ScrollEvent) {
	if pc.ctl.Wheel(float64(e.Scrolled.DY)).Accepted && pc.OnChange != nil {
		pc.OnChange()
	}
}

func (pc *PaintCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := fcanvas.NewRectangle(color.NRGBA{R: 60, G: 60, B: 60, A: 255})
	return &paintCanvasRenderer{pc: pc, bg: bg, objects: []fyne.CanvasObject{bg, pc.img}}
}

type paintCanvasRenderer struct {
	pc      *PaintCanvas
	bg      *fcanvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *paintCanvasRenderer) Destroy()                     {}
func (r *paintCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *paintCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(256, 256) }
func (r *paintCanvasRenderer) Refresh()                     { r.Layout(r.pc.Size()); fcanvas.Refresh(r.pc) }

func (r *paintCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	v := r.pc.ctl.SetViewport(float64(size.Width), float64(size.Height))
	r.pc.img.Move(fyne.NewPos(float32(v.X), float32(v.Y)))
	r.pc.img.Resize(fyne.NewSize(float32(v.Width), float32(v.Height)))
}
