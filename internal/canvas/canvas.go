/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package canvas owns the square pixel buffer that brushes paint into and
// publishes it to display surfaces on Flush.
//
// A Canvas is not safe for concurrent use. Hosts deliver input serially and the
// canvas is mutated only by the paint session that owns it.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
)

const (
	MinSize = 2
	MaxSize = 512
)

// ErrInvalidSize is returned when a texture size falls outside [MinSize, MaxSize].
var ErrInvalidSize = errors.New("canvas: texture size out of range")

// Option configures a Canvas during creation.
type Option func(*options)

type options struct {
	wrap   domain.WrapMode
	filter domain.FilterMode
	clear  domain.Color
	log    *slog.Logger
}

func defaultOptions() options {
	return options{wrap: domain.WrapClamp, filter: domain.FilterPoint, clear: domain.Transparent}
}

// WithWrap sets the wrap mode handed to surfaces with every frame.
func WithWrap(w domain.WrapMode) Option { return func(o *options) { o.wrap = w } }

// WithFilter sets the filter mode handed to surfaces with every frame.
func WithFilter(f domain.FilterMode) Option { return func(o *options) { o.filter = f } }

// WithClearColor sets the initial fill colour.
func WithClearColor(c domain.Color) Option { return func(o *options) { o.clear = c } }

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// Canvas is a size x size grid of RGBA pixels stored row-major.
type Canvas struct {
	size     int
	pix      []domain.Color
	wrap     domain.WrapMode
	filter   domain.FilterMode
	surfaces []attached
	nextID   uint64
	seq      uint64
	log      *slog.Logger
}

// New allocates a canvas filled with the configured clear colour.
func New(size int, opts ...Option) (*Canvas, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = applog.WithComponent("canvas")
	}
	c := &Canvas{
		size:   size,
		pix:    make([]domain.Color, size*size),
		wrap:   o.wrap,
		filter: o.filter,
		log:    o.log,
	}
	if o.clear != domain.Transparent {
		c.Fill(o.clear)
	}
	return c, nil
}

// ValidateSize checks a texture size against the supported range.
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidSize, size, MinSize, MaxSize)
	}
	return nil
}

// Size returns the edge length in pixels.
func (c *Canvas) Size() int { return c.size }

// Wrap returns the wrap mode passed through to surfaces.
func (c *Canvas) Wrap() domain.WrapMode { return c.wrap }

// Filter returns the filter mode passed through to surfaces.
func (c *Canvas) Filter() domain.FilterMode { return c.filter }

// InBounds reports whether (x, y) addresses a pixel.
func (c *Canvas) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.size && y < c.size
}

// At returns the pixel at (x, y). ok is false outside the canvas.
func (c *Canvas) At(x, y int) (col domain.Color, ok bool) {
	if !c.InBounds(x, y) {
		return domain.Transparent, false
	}
	return c.pix[y*c.size+x], true
}

// Set writes one pixel. Writes outside the canvas are dropped and report false.
func (c *Canvas) Set(x, y int, col domain.Color) bool {
	if !c.InBounds(x, y) {
		return false
	}
	c.pix[y*c.size+x] = col
	return true
}

// Fill sets every pixel to col.
func (c *Canvas) Fill(col domain.Color) {
	for i := range c.pix {
		c.pix[i] = col
	}
}

// Resize reallocates the buffer when size changes. Contents are discarded and
// the new buffer is transparent. Resizing to the current size keeps contents.
func (c *Canvas) Resize(size int) error {
	if err := ValidateSize(size); err != nil {
		return err
	}
	if size == c.size {
		return nil
	}
	c.log.Info("canvas resized", slog.Int("from", c.size), slog.Int("to", size))
	c.size = size
	c.pix = make([]domain.Color, size*size)
	return nil
}

// Image converts the buffer to an 8-bit NRGBA image.
func (c *Canvas) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, c.size, c.size))
	for y := 0; y < c.size; y++ {
		row := c.pix[y*c.size : (y+1)*c.size]
		off := y * img.Stride
		for x, p := range row {
			n := p.NRGBA()
			img.Pix[off+x*4+0] = n.R
			img.Pix[off+x*4+1] = n.G
			img.Pix[off+x*4+2] = n.B
			img.Pix[off+x*4+3] = n.A
		}
	}
	return img
}

// LoadImage replaces the buffer with img. The image must be square and within range;
// the canvas is resized to match it.
func (c *Canvas) LoadImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return fmt.Errorf("canvas: image is %dx%d, want square", b.Dx(), b.Dy())
	}
	if err := c.Resize(b.Dx()); err != nil {
		return err
	}
	nrgba, ok := img.(*image.NRGBA)
	for y := 0; y < c.size; y++ {
		for x := 0; x < c.size; x++ {
			var px domain.Color
			if ok {
				px = domain.ColorFromNRGBA(nrgba.NRGBAAt(b.Min.X+x, b.Min.Y+y))
			} else {
				r, g, bb, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				px = unpremultiply(r, g, bb, a)
			}
			c.pix[y*c.size+x] = px
		}
	}
	return nil
}

func unpremultiply(r, g, b, a uint32) domain.Color {
	if a == 0 {
		return domain.Transparent
	}
	fa := float32(a)
	return domain.Color{R: float32(r) / fa, G: float32(g) / fa, B: float32(b) / fa, A: fa / 0xffff}
}
