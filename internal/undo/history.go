/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"texpaint/internal/canvas"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// CanvasHistory keeps undo states of one canvas. The state after the last commit is
// held aside as the baseline; committing pushes the baseline and captures a new one.
type CanvasHistory struct {
	m        *Manager
	c        *canvas.Canvas
	baseline Snapshot
	now      func() time.Time
	log      *slog.Logger
}

// NewCanvasHistory captures the current canvas as the first baseline.
func NewCanvasHistory(c *canvas.Canvas, cfg Config) (*CanvasHistory, error) {
	h := &CanvasHistory{m: NewManager(cfg), c: c, now: time.Now, log: applog.WithComponent("undo")}
	s, err := h.capture()
	if err != nil {
		return nil, err
	}
	h.baseline = s
	return h, nil
}

// Commit marks the current canvas as a new undo step.
func (h *CanvasHistory) Commit() error {
	s, err := h.capture()
	if err != nil {
		return err
	}
	h.m.Push(Snapshot{Blob: h.baseline.Blob, TS: s.TS})
	h.baseline = s
	return nil
}

// Observe commits after every finished stroke and every accepted resize. Install it
// as (part of) paint.Session.OnEvent.
func (h *CanvasHistory) Observe(ev paint.Event, out paint.Outcome) {
	if !out.Accepted || (ev.Kind != paint.EventEnd && ev.Kind != paint.EventResize) {
		return
	}
	if err := h.Commit(); err != nil {
		h.log.Warn("undo capture failed", slog.String("kind", string(ev.Kind)), slog.Any("err", err))
	}
}

// Undo restores the previous step and flushes the canvas. false when there is none.
func (h *CanvasHistory) Undo() (bool, error) {
	s, ok := h.m.Undo(h.baseline)
	if !ok {
		return false, nil
	}
	return true, h.restore(s)
}

// Redo re-applies the last undone step and flushes the canvas.
func (h *CanvasHistory) Redo() (bool, error) {
	s, ok := h.m.Redo(h.baseline)
	if !ok {
		return false, nil
	}
	return true, h.restore(s)
}

func (h *CanvasHistory) CanUndo() bool { return h.m.CanUndo() }
func (h *CanvasHistory) CanRedo() bool { return h.m.CanRedo() }

// Stats forwards Manager.Stats.
func (h *CanvasHistory) Stats() (totalBytes, undoDepth, redoDepth int) { return h.m.Stats() }

func (h *CanvasHistory) capture() (Snapshot, error) {
	raw, err := h.c.MarshalBinary()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Blob: encoder.EncodeAll(raw, nil), TS: h.now()}, nil
}

func (h *CanvasHistory) restore(s Snapshot) error {
	if decoder == nil {
		return errors.New("zstd decoder unavailable")
	}
	raw, err := decoder.DecodeAll(s.Blob, nil)
	if err != nil {
		return fmt.Errorf("decode undo state: %w", err)
	}
	if err := h.c.UnmarshalBinary(raw); err != nil {
		return err
	}
	h.baseline = s
	return h.c.Flush()
}
