package mapper

import (
	"testing"

	"texpaint/internal/domain"
)

func TestMapUIPointScalesPerAxis(t *testing.T) {
	rect := domain.Rect{X: 100, Y: 50, Width: 400, Height: 200}
	cases := []struct {
		name   string
		screen domain.Vec2
		want   domain.TexCoord
	}{
		{"min corner", domain.Vec2{X: 100, Y: 50}, domain.TexCoord{}},
		{"centre", domain.Vec2{X: 300, Y: 150}, domain.TexCoord{X: 64, Y: 64}},
		{"max corner", domain.Vec2{X: 500, Y: 250}, domain.TexCoord{X: 128, Y: 128}},
		{"quarter", domain.Vec2{X: 200, Y: 100}, domain.TexCoord{X: 32, Y: 32}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := MapUIPoint(c.screen, rect, Square(128))
			if !ok {
				t.Fatalf("point reported outside rect")
			}
			if got != c.want {
				t.Fatalf("got %+v want %+v", got, c.want)
			}
		})
	}
}

func TestMapUIPointOutside(t *testing.T) {
	rect := domain.Rect{X: 0, Y: 0, Width: 10, Height: 10}
	for _, p := range []domain.Vec2{{X: -1, Y: 5}, {X: 5, Y: 11}, {X: 20, Y: 20}} {
		if _, ok := MapUIPoint(p, rect, Square(64)); ok {
			t.Fatalf("point %+v mapped although outside", p)
		}
	}
}

func TestFromUV(t *testing.T) {
	got := FromUV(0.5, 0.25, 256)
	if got.X != 128 || got.Y != 64 {
		t.Fatalf("FromUV = %+v", got)
	}
}
