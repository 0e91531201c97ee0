/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// This file defines the value types shared by the painting core and its hosts.
// They are plain structs with JSON tags so they can travel through the journal,
// event scripts and the live-view protocol unchanged.

// Color is a linear RGBA colour with every channel in [0, 1].
// Alpha doubles as blend strength when the colour is used by a brush.
type Color struct {
	R float32 `json:"r" yaml:"r"`
	G float32 `json:"g" yaml:"g"`
	B float32 `json:"b" yaml:"b"`
	A float32 `json:"a" yaml:"a"`
}

var (
	Transparent = Color{}
	Black       = Color{A: 1}
	White       = Color{R: 1, G: 1, B: 1, A: 1}
	Red         = Color{R: 1, A: 1}
)

// NRGBA converts to an 8-bit non-premultiplied colour, rounding to nearest.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// ColorFromNRGBA converts an 8-bit non-premultiplied colour.
func ColorFromNRGBA(c color.NRGBA) Color {
	return Color{R: float32(c.R) / 255, G: float32(c.G) / 255, B: float32(c.B) / 255, A: float32(c.A) / 255}
}

// Valid reports whether every channel lies in [0, 1].
func (c Color) Valid() bool {
	for _, v := range [4]float32{c.R, c.G, c.B, c.A} {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			return false
		}
	}
	return true
}

// Distance is the euclidean distance between two colours over all four channels.
func (c Color) Distance(o Color) float64 {
	dr := float64(c.R - o.R)
	dg := float64(c.G - o.G)
	db := float64(c.B - o.B)
	da := float64(c.A - o.A)
	return math.Sqrt(dr*dr + dg*dg + db*db + da*da)
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Vec2 is a raw pointer position as delivered by a host (screen pixels or UV).
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TexCoord is a point in texture space. It stays fractional while a stroke is
// interpolated and is truncated to a pixel index only when a stamp is placed.
type TexCoord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixel truncates toward zero, the same way a float-to-int cast does.
func (t TexCoord) Pixel() (int, int) { return int(t.X), int(t.Y) }

// Lerp returns t + (o - t) * f.
func (t TexCoord) Lerp(o TexCoord, f float64) TexCoord {
	return TexCoord{X: t.X + (o.X-t.X)*f, Y: t.Y + (o.Y-t.Y)*f}
}

// Dist is the euclidean distance between two texture points.
func (t TexCoord) Dist(o TexCoord) float64 { return math.Hypot(o.X-t.X, o.Y-t.Y) }

// Rect is an axis-aligned UI rectangle in screen space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r, edges included. Empty rects contain nothing.
func (r Rect) Contains(p Vec2) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	lx := p.X - r.X
	ly := p.Y - r.Y
	return lx >= 0 && ly >= 0 && lx <= r.Width && ly <= r.Height
}

// Shape selects the brush footprint.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeQuad
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeQuad:
		return "quad"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape accepts "circle" or "quad" (case-insensitive). "square" is an alias for quad.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "circle", "":
		return ShapeCircle, nil
	case "quad", "square":
		return ShapeQuad, nil
	}
	return 0, fmt.Errorf("unknown brush shape %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Brush is the stamp configuration. Size is a pixel diameter and may be
// changed between events (scroll input); sizes <= 0 stamp nothing.
type Brush struct {
	Size  int   `json:"size"`
	Color Color `json:"color"`
	Shape Shape `json:"shape"`
}

// WrapMode and FilterMode are carried to display surfaces untouched;
// the painting core never reads them.
type WrapMode string

const (
	WrapClamp  WrapMode = "clamp"
	WrapRepeat WrapMode = "repeat"
	WrapMirror WrapMode = "mirror"
)

type FilterMode string

const (
	FilterPoint     FilterMode = "point"
	FilterBilinear  FilterMode = "bilinear"
	FilterTrilinear FilterMode = "trilinear"
)

// Valid reports whether w is one of the known wrap modes.
func (w WrapMode) Valid() bool {
	switch w {
	case WrapClamp, WrapRepeat, WrapMirror:
		return true
	}
	return false
}

// Valid reports whether f is one of the known filter modes.
func (f FilterMode) Valid() bool {
	switch f {
	case FilterPoint, FilterBilinear, FilterTrilinear:
		return true
	}
	return false
}
