/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package paint drives the brush pipeline for pointer input:
// locate -> interpolate -> mask -> blend -> canvas, with one flush per event.
//
// A Session is single-threaded. Every call runs to completion before the next
// one; hosts that receive input concurrently must serialize it.
package paint

import (
	"log/slog"

	"texpaint/internal/brush"
	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/stroke"
)

// State is the stroke state of a Session.
type State int

const (
	Idle State = iota
	Stroking
)

func (s State) String() string {
	if s == Stroking {
		return "stroking"
	}
	return "idle"
}

// Session owns a canvas and the "last painted point" of the current stroke.
type Session struct {
	canvas  *canvas.Canvas
	locator Locator
	brush   domain.Brush
	masks   brush.MaskCache

	state   State
	last    domain.TexCoord
	hasLast bool

	// per-stroke counters for logging
	strokeEvents int
	strokeStamps int

	log *slog.Logger

	// OnEvent, when set, observes every event with its outcome (journal, telemetry).
	OnEvent func(Event, Outcome)
}

// NewSession creates an idle session. A nil locator means positions are
// already in texture space.
func NewSession(c *canvas.Canvas, loc Locator, b domain.Brush) *Session {
	if loc == nil {
		loc = TextureLocator{}
	}
	return &Session{
		canvas:  c,
		locator: loc,
		brush:   b,
		log:     applog.WithComponent("paint"),
	}
}

func (s *Session) Canvas() *canvas.Canvas { return s.canvas }
func (s *Session) Brush() domain.Brush    { return s.brush }
func (s *Session) State() State           { return s.state }

// LastPoint returns the previous stamp position of the active stroke.
func (s *Session) LastPoint() (domain.TexCoord, bool) { return s.last, s.hasLast }

// SetLocator swaps the coordinate source, e.g. when the UI rectangle moves.
func (s *Session) SetLocator(loc Locator) {
	if loc == nil {
		loc = TextureLocator{}
	}
	s.locator = loc
}

// PointerDown starts a stroke: one stamp at the located point and a flush.
// Positions off the canvas are ignored without touching state.
func (s *Session) PointerDown(pos domain.Vec2) Outcome {
	ev := Event{Kind: EventDown, Pos: pos}
	tc, ok := s.locate(pos)
	if !ok {
		return s.notify(ev, Outcome{Tex: tc})
	}
	px := s.Stamp(tc)
	err := s.canvas.Flush()
	s.last, s.hasLast = tc, true
	s.state = Stroking
	s.strokeEvents, s.strokeStamps = 1, 1
	s.log.Debug("stroke begin", slog.Float64("x", tc.X), slog.Float64("y", tc.Y), slog.Int("size", s.brush.Size), slog.String("shape", s.brush.Shape.String()))
	return s.notify(ev, Outcome{Accepted: true, Tex: tc, Stamps: 1, Pixels: px, Err: err})
}

// Drag continues the stroke with interpolated stamps from the last point and
// flushes once. While idle, or when the pointer is off the canvas, it does
// nothing; the last point is then left as it was.
func (s *Session) Drag(pos domain.Vec2) Outcome {
	ev := Event{Kind: EventDrag, Pos: pos}
	if s.state != Stroking {
		return s.notify(ev, Outcome{})
	}
	tc, ok := s.locate(pos)
	if !ok {
		return s.notify(ev, Outcome{Tex: tc})
	}
	stamps, px := stroke.Count(s.last, s.hasLast, tc), 0
	for p := range stroke.Interpolate(s.last, s.hasLast, tc) {
		px += s.Stamp(p)
	}
	err := s.canvas.Flush()
	s.last, s.hasLast = tc, true
	s.strokeEvents++
	s.strokeStamps += stamps
	return s.notify(ev, Outcome{Accepted: true, Tex: tc, Stamps: stamps, Pixels: px, Err: err})
}

// EndDrag finishes the stroke. No stamp, no flush.
func (s *Session) EndDrag() Outcome {
	ev := Event{Kind: EventEnd}
	wasStroking := s.state == Stroking
	if wasStroking {
		s.log.Debug("stroke end", slog.Int("events", s.strokeEvents), slog.Int("stamps", s.strokeStamps))
	}
	s.endStroke()
	return s.notify(ev, Outcome{Accepted: wasStroking})
}

// Scroll adds deltaY to the brush size. The result is not clamped; sizes
// <= 0 simply stamp nothing until scrolled back up.
func (s *Session) Scroll(deltaY int) Outcome {
	s.brush.Size += deltaY
	if s.brush.Size <= 0 {
		s.log.Debug("brush size not positive, stamps are no-ops", slog.Int("size", s.brush.Size))
	}
	return s.notify(Event{Kind: EventScroll, DY: deltaY}, Outcome{Accepted: deltaY != 0})
}

// SetBrush replaces the brush. Takes effect with the next stamp.
func (s *Session) SetBrush(b domain.Brush) Outcome {
	s.brush = b
	bb := b
	return s.notify(Event{Kind: EventBrush, Brush: &bb}, Outcome{Accepted: true})
}

// Resize changes the canvas size (destroying contents when it differs) and
// ends any active stroke.
func (s *Session) Resize(size int) Outcome {
	ev := Event{Kind: EventResize, Size: size}
	if err := s.canvas.Resize(size); err != nil {
		return s.notify(ev, Outcome{Err: err})
	}
	s.endStroke()
	return s.notify(ev, Outcome{Accepted: true})
}

// Stamp applies the brush once centred on tc (truncated to a pixel) and
// returns how many pixels were written. Cells off the canvas are skipped.
func (s *Session) Stamp(tc domain.TexCoord) int {
	cx, cy := tc.Pixel()
	size := s.brush.Size
	anchor := brush.Anchor(size)
	written := 0
	for _, o := range s.masks.Offsets(size, s.brush.Shape) {
		x := cx + o.DX - anchor
		y := cy + o.DY - anchor
		cur, ok := s.canvas.At(x, y)
		if !ok {
			continue
		}
		s.canvas.Set(x, y, brush.Blend(cur, s.brush.Color))
		written++
	}
	return written
}

func (s *Session) locate(pos domain.Vec2) (domain.TexCoord, bool) {
	tc, ok := s.locator.Locate(pos, s.canvas.Size())
	if !ok {
		return tc, false
	}
	n := float64(s.canvas.Size())
	if tc.X < 0 || tc.Y < 0 || tc.X >= n || tc.Y >= n {
		return tc, false
	}
	return tc, true
}

func (s *Session) endStroke() {
	s.hasLast = false
	s.last = domain.TexCoord{}
	s.state = Idle
	s.strokeEvents, s.strokeStamps = 0, 0
}

func (s *Session) notify(ev Event, out Outcome) Outcome {
	if out.Err != nil {
		s.log.Warn("event error", slog.String("kind", string(ev.Kind)), slog.Any("err", out.Err))
	}
	if s.OnEvent != nil {
		s.OnEvent(ev, out)
	}
	return out
}
