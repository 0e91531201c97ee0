package export

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBatchExport_WebPreset(t *testing.T) {
	ws, c := sampleWorkspace(t)
	paths, err := BatchExport(ws, c, BatchOptions{Preset: PresetWeb})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	checks := []string{
		filepath.Join(ws.Root, "exports", "web", "canvas.png"),
		filepath.Join(ws.Root, "exports", "web", "canvas-tiled.png"),
	}
	if len(paths) != len(checks) {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range checks {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
	if img := decode(t, checks[1]); img.Bounds().Dx() != 24 {
		t.Fatalf("tiled width = %d", img.Bounds().Dx())
	}
}

func TestBatchExport_PrintPreset(t *testing.T) {
	ws, c := sampleWorkspace(t)
	if _, err := BatchExport(ws, c, BatchOptions{Preset: PresetPrint, Base: "sheet"}); err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	for _, p := range []string{
		filepath.Join(ws.Root, "exports", "print", "sheet.pdf"),
		filepath.Join(ws.Root, "exports", "print", "sheet.png"),
	} {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
	if img := decode(t, filepath.Join(ws.Root, "exports", "print", "sheet.png")); img.Bounds().Dx() != 32 {
		t.Fatalf("print png not scaled x4")
	}
}

func TestBatchExport_UnknownFormat(t *testing.T) {
	ws, c := sampleWorkspace(t)
	if _, err := BatchExport(ws, c, BatchOptions{Formats: []string{"gif"}}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
