/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the desktop painting window. The Fyne widget lives behind the
// "fyne" build tag; Controller holds the toolkit-independent input handling.
package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
)

// ErrNoUI is returned by Run when the binary was built without the paint window.
var ErrNoUI = errors.New("paint window not built into this binary")

// Swatch is a named palette entry.
type Swatch struct {
	Name  string
	Color domain.Color
}

// Palette is the colour row shown above the canvas.
var Palette = []Swatch{
	{"Black", domain.Black},
	{"White", domain.White},
	{"Red", domain.Red},
	{"Green", domain.Color{G: 0.8, A: 1}},
	{"Blue", domain.Color{B: 1, A: 1}},
	{"Yellow", domain.Color{R: 1, G: 0.9, A: 1}},
	{"Glaze", domain.Color{R: 0.2, G: 0.2, B: 0.8, A: 0.25}},
	{"Eraser", domain.Transparent},
}

// Controller turns widget input into session events. The canvas is shown as the
// largest centred square of the viewport; positions are in widget coordinates.
type Controller struct {
	s    *paint.Session
	view domain.Rect
	log  *slog.Logger
}

// NewController wires s to a UI locator. Call SetViewport before the first input.
func NewController(s *paint.Session) *Controller {
	c := &Controller{s: s, log: applog.WithComponent("ui")}
	s.SetLocator(paint.UILocator{Rect: c.view})
	return c
}

// Session returns the controlled session.
func (c *Controller) Session() *paint.Session { return c.s }

// View returns the rectangle the canvas occupies inside the viewport.
func (c *Controller) View() domain.Rect { return c.view }

// SetViewport recomputes the canvas rectangle for a viewport of w x h.
func (c *Controller) SetViewport(w, h float64) domain.Rect {
	c.view = FitSquare(w, h)
	c.s.SetLocator(paint.UILocator{Rect: c.view})
	return c.view
}

// FitSquare returns the largest square centred in a w x h area.
func FitSquare(w, h float64) domain.Rect {
	side := math.Max(0, math.Min(w, h))
	return domain.Rect{X: (w - side) / 2, Y: (h - side) / 2, Width: side, Height: side}
}

func (c *Controller) Press(x, y float64) paint.Outcome {
	return c.s.Apply(paint.Event{Kind: paint.EventDown, Pos: domain.Vec2{X: x, Y: y}})
}

func (c *Controller) Move(x, y float64) paint.Outcome {
	return c.s.Apply(paint.Event{Kind: paint.EventDrag, Pos: domain.Vec2{X: x, Y: y}})
}

// Release ends the stroke. Mouse-up and drag-end both arrive for one gesture, so
// only the first one is forwarded.
func (c *Controller) Release() paint.Outcome {
	if c.s.State() != paint.Stroking {
		return paint.Outcome{}
	}
	return c.s.Apply(paint.Event{Kind: paint.EventEnd})
}

// Wheel changes the brush size by one step per notch, whatever the wheel delta.
func (c *Controller) Wheel(dy float64) paint.Outcome {
	step := ScrollStep(dy)
	if step == 0 {
		return paint.Outcome{}
	}
	return c.s.Apply(paint.Event{Kind: paint.EventScroll, DY: step})
}

// ScrollStep maps a wheel delta to +1, -1 or 0.
func ScrollStep(dy float64) int {
	switch {
	case dy > 0:
		return 1
	case dy < 0:
		return -1
	}
	return 0
}

// SetColor keeps shape and size and swaps the colour.
func (c *Controller) SetColor(col domain.Color) paint.Outcome {
	b := c.s.Brush()
	b.Color = col
	return c.s.Apply(paint.Event{Kind: paint.EventBrush, Brush: &b})
}

// ToggleShape switches between circle and quad.
func (c *Controller) ToggleShape() paint.Outcome {
	b := c.s.Brush()
	if b.Shape == domain.ShapeCircle {
		b.Shape = domain.ShapeQuad
	} else {
		b.Shape = domain.ShapeCircle
	}
	return c.s.Apply(paint.Event{Kind: paint.EventBrush, Brush: &b})
}

// Resize changes the texture size and shows the cleared canvas.
func (c *Controller) Resize(size int) paint.Outcome {
	out := c.s.Apply(paint.Event{Kind: paint.EventResize, Size: size})
	if out.Accepted {
		if err := c.s.Canvas().Flush(); err != nil {
			c.log.Warn("flush after resize failed", slog.Any("err", err))
		}
	}
	return out
}

// Clear fills the canvas with col and shows it.
func (c *Controller) Clear(col domain.Color) error {
	c.s.Canvas().Fill(col)
	return c.s.Canvas().Flush()
}

// Status is the one-line summary shown under the canvas.
func (c *Controller) Status() string {
	b := c.s.Brush()
	cv := c.s.Canvas()
	st := fmt.Sprintf("%dx%d  brush %s %d  %s", cv.Size(), cv.Size(), b.Shape, b.Size, c.s.State())
	if p, ok := c.s.LastPoint(); ok {
		x, y := p.Pixel()
		st += fmt.Sprintf(" at %d,%d", x, y)
	}
	return st
}
