package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestExportPDF_CreatesFile(t *testing.T) {
	ws, c := sampleWorkspace(t)
	out, err := ExportPDF(ws, c, "sheet.pdf", PDFOptions{Title: "Export test", IncludeInfo: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != filepath.Join(ws.Root, "exports", "sheet.pdf") {
		t.Fatalf("out = %s", out)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
	if !bytes.Contains(b, []byte("/Subtype /Image")) {
		t.Fatalf("pdf carries no image")
	}
}

func TestExportPDF_LetterWithoutWorkspace(t *testing.T) {
	_, c := sampleWorkspace(t)
	out := filepath.Join(t.TempDir(), "nested", "letter.pdf")
	if _, err := ExportPDF(nil, c, out, PDFOptions{PageSize: "Letter"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Fatalf("pdf missing or empty: %v", err)
	}
}
