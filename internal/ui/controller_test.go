package ui

import (
	"strings"
	"testing"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/paint"
)

func newTestController(t *testing.T, size int) (*Controller, *canvas.ImageSurface) {
	t.Helper()
	c, err := canvas.New(size, canvas.WithClearColor(domain.White))
	if err != nil {
		t.Fatal(err)
	}
	surf := &canvas.ImageSurface{}
	c.Attach(surf)
	s := paint.NewSession(c, nil, domain.Brush{Size: 1, Color: domain.Red, Shape: domain.ShapeQuad})
	return NewController(s), surf
}

func TestFitSquareCentres(t *testing.T) {
	r := FitSquare(300, 200)
	if r != (domain.Rect{X: 50, Y: 0, Width: 200, Height: 200}) {
		t.Fatalf("landscape = %+v", r)
	}
	r = FitSquare(100, 160)
	if r != (domain.Rect{X: 0, Y: 30, Width: 100, Height: 100}) {
		t.Fatalf("portrait = %+v", r)
	}
	if r := FitSquare(-5, 10); r.Width != 0 {
		t.Fatalf("negative viewport = %+v", r)
	}
}

func TestControllerPaintsThroughViewport(t *testing.T) {
	ctl, surf := newTestController(t, 10)
	ctl.SetViewport(300, 200) // canvas spans x 50..250, 20 screen px per texel

	if out := ctl.Press(10, 10); out.Accepted {
		t.Fatalf("press in the letterbox accepted")
	}
	if out := ctl.Press(50+20*2+5, 20*3+5); !out.Accepted || out.Tex.X != 2.25 {
		t.Fatalf("press = %+v", out)
	}
	if px, _ := ctl.Session().Canvas().At(2, 3); px != domain.Red {
		t.Fatalf("pixel (2,3) = %+v", px)
	}
	ctl.Move(50+20*6+5, 20*3+5)
	if px, _ := ctl.Session().Canvas().At(4, 3); px != domain.Red {
		t.Fatalf("interpolated pixel (4,3) = %+v", px)
	}
	if surf.Presents() != 2 {
		t.Fatalf("presents = %d", surf.Presents())
	}
	if st := ctl.Status(); !strings.HasSuffix(st, "stroking at 6,3") {
		t.Fatalf("status while stroking = %q", st)
	}

	if !ctl.Release().Accepted {
		t.Fatalf("first release rejected")
	}
	if st := ctl.Status(); strings.Contains(st, " at ") {
		t.Fatalf("status after release = %q", st)
	}
	if ctl.Release().Accepted {
		t.Fatalf("second release forwarded")
	}
}

func TestControllerWheelAndBrush(t *testing.T) {
	ctl, _ := newTestController(t, 8)
	var seen []paint.EventKind
	ctl.Session().OnEvent = func(ev paint.Event, _ paint.Outcome) { seen = append(seen, ev.Kind) }

	ctl.Wheel(2.5)
	ctl.Wheel(0)
	ctl.Wheel(-0.1)
	ctl.Wheel(7)
	if got := ctl.Session().Brush().Size; got != 2 {
		t.Fatalf("brush size = %d", got)
	}
	ctl.SetColor(domain.Black)
	ctl.ToggleShape()
	b := ctl.Session().Brush()
	if b.Color != domain.Black || b.Shape != domain.ShapeCircle || b.Size != 2 {
		t.Fatalf("brush = %+v", b)
	}
	if len(seen) != 5 {
		t.Fatalf("events = %v", seen)
	}
	if !strings.Contains(ctl.Status(), "brush circle 2") {
		t.Fatalf("status = %q", ctl.Status())
	}
}

func TestControllerResizeAndClearFlush(t *testing.T) {
	ctl, surf := newTestController(t, 8)
	if ctl.Resize(1).Accepted {
		t.Fatalf("invalid size accepted")
	}
	if surf.Presents() != 0 {
		t.Fatalf("rejected resize flushed")
	}
	if !ctl.Resize(16).Accepted || surf.Last().Size != 16 {
		t.Fatalf("resize not shown")
	}
	if err := ctl.Clear(domain.Black); err != nil {
		t.Fatal(err)
	}
	if px, _ := ctl.Session().Canvas().At(15, 15); px != domain.Black || surf.Presents() != 2 {
		t.Fatalf("clear: px=%+v presents=%d", px, surf.Presents())
	}
}
