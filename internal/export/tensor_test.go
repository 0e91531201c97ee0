package export

import (
	"testing"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/paint"
)

func TestDigitTensor_BlankIsZero(t *testing.T) {
	c, _ := canvas.New(64, canvas.WithClearColor(domain.White))
	tt := DigitTensor(c.Image())
	if tt.Width != DigitSide || len(tt.Data) != DigitSide*DigitSide {
		t.Fatalf("shape = %dx%d/%d", tt.Width, tt.Height, len(tt.Data))
	}
	for i, v := range tt.Data {
		if v != 0 {
			t.Fatalf("value %d = %v", i, v)
		}
	}
	// transparent canvases composite over white as well
	tr, _ := canvas.New(16)
	if DigitTensor(tr.Image()).At(14, 14) != 0 {
		t.Fatalf("transparent canvas shows ink")
	}
}

func TestDigitTensor_VerticalStrokeIsCentredAndFitted(t *testing.T) {
	c, _ := canvas.New(128, canvas.WithClearColor(domain.White))
	s := paint.NewSession(c, nil, domain.Brush{Size: 20, Color: domain.Black, Shape: domain.ShapeQuad})
	// a "1" drawn off-centre in the left third; ink box 20x120 fits to 3x20 at (12,4)
	s.PointerDown(domain.Vec2{X: 20, Y: 10})
	s.Drag(domain.Vec2{X: 20, Y: 110})
	s.EndDrag()

	tt := DigitTensor(c.Image())
	if v := tt.At(14, 14); v < 0.9 {
		t.Fatalf("centre ink = %v", v)
	}
	if tt.At(14, 4) < 0.5 || tt.At(14, 23) < 0.5 {
		t.Fatalf("stroke not stretched to the 20px box: top=%v bottom=%v", tt.At(14, 4), tt.At(14, 23))
	}
	if tt.At(14, 2) != 0 || tt.At(2, 14) != 0 || tt.At(25, 14) != 0 {
		t.Fatalf("ink outside the fitted box")
	}
	for _, v := range tt.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value out of range: %v", v)
		}
	}
}
