//go:build fyne && cgo

// These tests exercise the Fyne paint widget. They are gated behind the "fyne"
// build tag so headless CI does not need Fyne or a display. To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/paint"
)

func newTestPaintCanvas(t *testing.T) (*PaintCanvas, *paintCanvasRenderer) {
	t.Helper()
	test.NewTempApp(t)
	c, err := canvas.New(10, canvas.WithClearColor(domain.White))
	if err != nil {
		t.Fatal(err)
	}
	s := paint.NewSession(c, nil, domain.Brush{Size: 1, Color: domain.Red, Shape: domain.ShapeQuad})
	pc := NewPaintCanvas(NewController(s))
	r, ok := test.TempWidgetRenderer(t, pc).(*paintCanvasRenderer)
	if !ok {
		t.Fatalf("unexpected renderer type")
	}
	pc.Resize(fyne.NewSize(300, 200))
	r.Layout(fyne.NewSize(300, 200))
	return pc, r
}

func TestPaintCanvas_LayoutCentresSquare(t *testing.T) {
	pc, _ := newTestPaintCanvas(t)
	if pos := pc.img.Position(); pos.X != 50 || pos.Y != 0 {
		t.Fatalf("image position = %v", pos)
	}
	if sz := pc.img.Size(); sz.Width != 200 || sz.Height != 200 {
		t.Fatalf("image size = %v", sz)
	}
	if pc.img.ScaleMode != scaleMode(domain.FilterPoint) {
		t.Fatalf("scale mode = %v", pc.img.ScaleMode)
	}
}

func TestPaintCanvas_MouseStroke(t *testing.T) {
	pc, _ := newTestPaintCanvas(t)
	changes := 0
	pc.OnChange = func() { changes++ }

	pc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(95, 65)}, Button: desktop.MouseButtonPrimary})
	pc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(175, 65)}})
	pc.DragEnd()
	pc.MouseUp(&desktop.MouseEvent{})

	tex := pc.ctl.Session().Canvas()
	for x := 2; x <= 6; x++ {
		if px, _ := tex.At(x, 3); px != domain.Red {
			t.Fatalf("pixel (%d,3) = %+v", x, px)
		}
	}
	if pc.ctl.Session().State() != paint.Idle {
		t.Fatalf("stroke still active")
	}
	if changes != 2 {
		t.Fatalf("frames shown = %d", changes)
	}
}

func TestPaintCanvas_SecondaryButtonAndScroll(t *testing.T) {
	pc, _ := newTestPaintCanvas(t)
	pc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(95, 65)}, Button: desktop.MouseButtonSecondary})
	if pc.ctl.Session().State() != paint.Idle {
		t.Fatalf("secondary button started a stroke")
	}
	pc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.Delta{DY: 10}})
	if pc.ctl.Session().Brush().Size != 2 {
		t.Fatalf("brush size = %d", pc.ctl.Session().Brush().Size)
	}
}
