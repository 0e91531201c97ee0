/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"errors"
	"image"
	"log/slog"
	"sync"

	"texpaint/internal/domain"
)

// Frame is the full pixel buffer as published by one Flush.
// Surfaces must treat Pixels as read-only; it is shared between them.
type Frame struct {
	Pixels *image.NRGBA
	Size   int
	Wrap   domain.WrapMode
	Filter domain.FilterMode
	Seq    uint64
}

// Surface consumes flushed frames (texture upload, window, network viewers...).
type Surface interface {
	Present(f *Frame) error
}

// SurfaceFunc adapts a plain function to Surface.
type SurfaceFunc func(f *Frame) error

func (fn SurfaceFunc) Present(f *Frame) error { return fn(f) }

type attached struct {
	id uint64
	s  Surface
}

// Attach registers a surface and returns a function that removes it again.
// Surfaces are called in attach order. Calling the returned function more than
// once is a no-op.
func (c *Canvas) Attach(s Surface) (detach func()) {
	if s == nil {
		return func() {}
	}
	c.nextID++
	id := c.nextID
	c.surfaces = append(c.surfaces, attached{id: id, s: s})
	return func() { c.detach(id) }
}

// detach matches by registration id; Surface values such as SurfaceFunc are not comparable.
func (c *Canvas) detach(id uint64) {
	for i, a := range c.surfaces {
		if a.id == id {
			c.surfaces = append(c.surfaces[:i:i], c.surfaces[i+1:]...)
			return
		}
	}
}

// Seq returns the number of flushes performed so far.
func (c *Canvas) Seq() uint64 { return c.seq }

// Flush publishes the whole buffer to every attached surface once.
// Surface errors are logged and joined; they never roll back pixel writes.
func (c *Canvas) Flush() error {
	c.seq++
	if len(c.surfaces) == 0 {
		return nil
	}
	f := &Frame{Pixels: c.Image(), Size: c.size, Wrap: c.wrap, Filter: c.filter, Seq: c.seq}
	var errs []error
	for _, a := range c.surfaces {
		if err := a.s.Present(f); err != nil {
			c.log.Warn("surface present failed", slog.Uint64("seq", f.Seq), slog.Any("err", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ImageSurface keeps the most recent frame. It is safe to read from another goroutine.
type ImageSurface struct {
	mu    sync.RWMutex
	last  *Frame
	count int
}

func (s *ImageSurface) Present(f *Frame) error {
	s.mu.Lock()
	s.last = f
	s.count++
	s.mu.Unlock()
	return nil
}

// Last returns the latest frame or nil if nothing was flushed yet.
func (s *ImageSurface) Last() *Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Presents returns how many frames were received.
func (s *ImageSurface) Presents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
