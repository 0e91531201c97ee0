package export

import (
	"testing"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/storage"
)

func sampleWorkspace(t *testing.T) (*storage.Workspace, *canvas.Canvas) {
	t.Helper()
	ws, err := storage.InitWorkspace(t.TempDir(), domain.Manifest{
		Name:        "export",
		TextureSize: 8,
		Wrap:        domain.WrapRepeat,
		Filter:      domain.FilterPoint,
		ClearColor:  domain.White,
		Brush:       domain.Brush{Size: 2, Color: domain.Black, Shape: domain.ShapeQuad},
	})
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	c, err := ws.NewCanvas()
	if err != nil {
		t.Fatal(err)
	}
	c.Set(0, 0, domain.Red)
	c.Set(7, 0, domain.Black)
	return ws, c
}
