/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"log/slog"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
)

// Recorder appends a session's events to the journal. Install Observe as
// paint.Session.OnEvent. Journal failures never interrupt painting; the first
// one is kept for Err.
type Recorder struct {
	ctx     context.Context
	j       *Journal
	s       *paint.Session
	id      string
	seq     int
	snapEnd bool
	prev    func(paint.Event, paint.Outcome)
	err     error
	log     *slog.Logger
}

// StartRecording begins a journal session for s and hooks it up after any observer
// already installed. With snapshotOnStrokeEnd, every accepted end event is followed
// by a canvas snapshot.
func (j *Journal) StartRecording(ctx context.Context, s *paint.Session, snapshotOnStrokeEnd bool) (*Recorder, error) {
	id, err := j.BeginSession(ctx, s.Canvas().Size(), s.Brush())
	if err != nil {
		return nil, err
	}
	r := &Recorder{ctx: applog.ContextWithSession(ctx, id), j: j, s: s, id: id, snapEnd: snapshotOnStrokeEnd, prev: s.OnEvent, log: j.log}
	s.OnEvent = paint.Observe(r.prev, r.Observe)
	return r, nil
}

// SessionID returns the journal id of the recorded session.
func (r *Recorder) SessionID() string { return r.id }

// Seq returns the sequence number of the last recorded event.
func (r *Recorder) Seq() int { return r.seq }

// Observe records one event. Rejected events are kept too so replays see the same input.
func (r *Recorder) Observe(ev paint.Event, out paint.Outcome) {
	r.seq++
	if err := r.j.Append(r.ctx, r.id, r.seq, textureSpace(ev, out), out); err != nil {
		r.fail("append", err)
		return
	}
	if r.snapEnd && ev.Kind == paint.EventEnd && out.Accepted {
		if err := r.j.SaveSnapshot(r.ctx, r.id, r.seq, r.s.Canvas()); err != nil {
			r.fail("snapshot", err)
		}
	}
}

// Snapshot stores the current canvas at the current sequence number.
func (r *Recorder) Snapshot() error {
	return r.j.SaveSnapshot(r.ctx, r.id, r.seq, r.s.Canvas())
}

// Stop detaches from the session, restoring the previous observer, and closes the journal session.
func (r *Recorder) Stop() error {
	r.s.OnEvent = r.prev
	if err := r.j.EndSession(r.ctx, r.id); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// Err returns the first journal failure, if any.
func (r *Recorder) Err() error { return r.err }

// offCanvas is stored for pointer events that missed the canvas.
var offCanvas = domain.Vec2{X: -1, Y: -1}

// textureSpace rewrites pointer positions to the texture coordinates the session
// located them at, so a journal replays with paint.TextureLocator whatever the host
// (UI rectangle, UV hits) delivered.
func textureSpace(ev paint.Event, out paint.Outcome) paint.Event {
	if ev.Kind != paint.EventDown && ev.Kind != paint.EventDrag {
		return ev
	}
	if out.Accepted {
		ev.Pos = domain.Vec2{X: out.Tex.X, Y: out.Tex.Y}
	} else {
		ev.Pos = offCanvas
	}
	return ev
}

func (r *Recorder) fail(op string, err error) {
	r.log.WarnContext(r.ctx, "journal write failed", slog.String("op", op), slog.Int("seq", r.seq), slog.Any("err", err))
	if r.err == nil {
		r.err = err
	}
}

// Resume rebuilds the canvas of a recorded session: newest snapshot first (if any),
// then every later event replayed through s. s must start with the session's initial
// brush (SessionInfo.Brush) and locate positions as texture coordinates (a nil
// locator). It returns the number of replayed events.
func (j *Journal) Resume(ctx context.Context, sessionID string, s *paint.Session) (int, error) {
	after := 0
	info, err := j.RestoreLatest(ctx, sessionID, s.Canvas())
	switch {
	case err == nil:
		after = info.Seq
	case !errors.Is(err, ErrNoSnapshot):
		return 0, err
	}
	if after > 0 {
		// the snapshot holds pixels only; bring the brush up to date
		covered, err := j.eventsBetween(ctx, sessionID, 0, after)
		if err != nil {
			return 0, err
		}
		for _, ev := range covered {
			if ev.Kind == paint.EventBrush || ev.Kind == paint.EventScroll {
				s.Apply(ev)
			}
		}
	}
	events, err := j.Events(ctx, sessionID, after)
	if err != nil {
		return 0, err
	}
	paint.Replay(s, events)
	return len(events), nil
}
