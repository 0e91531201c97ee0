package scriptpack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"texpaint/internal/storage"
)

const stroke = `{"name": "line", "events": [{"type": "down", "x": 1, "y": 1}, {"type": "drag", "x": 9, "y": 1}, {"type": "end"}]}`

func writeScript(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, storage.ScriptsDirName, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExportAndInstall(t *testing.T) {
	src := t.TempDir()
	writeScript(t, src, "line.json", stroke)
	writeScript(t, src, "warmup/dots.json", stroke)
	writeScript(t, src, "notes.txt", "not a script")

	pack := filepath.Join(t.TempDir(), "out", "scripts.zip")
	n, err := Export(src, pack)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d scripts", n)
	}

	dst := t.TempDir()
	writeScript(t, dst, "line.json", `{"events": []}`)
	res, err := Install(dst, pack)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if res.Installed != 1 || res.Skipped != 1 || res.Invalid != 0 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dst, storage.ScriptsDirName, "warmup", "dots.json")); err != nil {
		t.Fatalf("nested script missing: %v", err)
	}
	kept, _ := os.ReadFile(filepath.Join(dst, storage.ScriptsDirName, "line.json"))
	if string(kept) != `{"events": []}` {
		t.Fatalf("existing script overwritten: %s", kept)
	}
}

func TestInstallRejectsInvalidAndEscapingEntries(t *testing.T) {
	pack := filepath.Join(t.TempDir(), "bad.zip")
	f, err := os.Create(pack)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"../evil.json":    stroke,
		"broken.json":     `{"events": [{"type": "jump"}]}`,
		"scripts/ok.json": stroke,
		"readme.md":       "hi",
		ManifestName:      "index",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(body))
	}
	_ = zw.Close()
	_ = f.Close()

	dst := t.TempDir()
	res, err := Install(dst, pack)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	// ../evil.json is cleaned to evil.json inside the scripts folder
	if res.Installed != 2 || res.Invalid != 2 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dst, "evil.json")); !os.IsNotExist(err) {
		t.Fatalf("entry escaped the scripts folder")
	}
	if _, err := os.Stat(filepath.Join(dst, storage.ScriptsDirName, "ok.json")); err != nil {
		t.Fatalf("ok.json missing: %v", err)
	}
}

func TestExportEmptyWorkspace(t *testing.T) {
	pack := filepath.Join(t.TempDir(), "empty.zip")
	n, err := Export(t.TempDir(), pack)
	if err != nil || n != 0 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	r, err := zip.OpenReader(pack)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close() }()
	if len(r.File) != 1 || r.File[0].Name != ManifestName {
		t.Fatalf("entries = %d", len(r.File))
	}
}
