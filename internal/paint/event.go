/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package paint

import (
	"fmt"

	"texpaint/internal/domain"
)

// EventKind names a session input.
type EventKind string

const (
	EventDown   EventKind = "down"
	EventDrag   EventKind = "drag"
	EventEnd    EventKind = "end"
	EventScroll EventKind = "scroll"
	EventBrush  EventKind = "brush"
	EventResize EventKind = "resize"
)

// Event is one input as delivered to a Session. Only the fields relevant to
// Kind are set; events serialize to JSON for the journal and replay scripts.
type Event struct {
	Kind  EventKind     `json:"kind"`
	Pos   domain.Vec2   `json:"pos"`
	DY    int           `json:"dy,omitempty"`
	Brush *domain.Brush `json:"brush,omitempty"`
	Size  int           `json:"size,omitempty"`
}

// Outcome describes what an event did to the canvas.
type Outcome struct {
	Accepted bool            `json:"accepted"`
	Tex      domain.TexCoord `json:"tex"`
	Stamps   int             `json:"stamps"`
	Pixels   int             `json:"pixels"`
	Err      error           `json:"-"`
}

// Apply dispatches ev to the matching Session method.
func (s *Session) Apply(ev Event) Outcome {
	switch ev.Kind {
	case EventDown:
		return s.PointerDown(ev.Pos)
	case EventDrag:
		return s.Drag(ev.Pos)
	case EventEnd:
		return s.EndDrag()
	case EventScroll:
		return s.Scroll(ev.DY)
	case EventBrush:
		if ev.Brush == nil {
			return s.notify(ev, Outcome{Err: fmt.Errorf("brush event without brush")})
		}
		return s.SetBrush(*ev.Brush)
	case EventResize:
		return s.Resize(ev.Size)
	}
	return s.notify(ev, Outcome{Err: fmt.Errorf("unknown event kind %q", ev.Kind)})
}

// Replay feeds events to s in order and returns the number of accepted ones.
func Replay(s *Session, events []Event) int {
	n := 0
	for _, ev := range events {
		if s.Apply(ev).Accepted {
			n++
		}
	}
	return n
}

// Observe combines event observers into one OnEvent callback. Nil entries are skipped.
func Observe(fns ...func(Event, Outcome)) func(Event, Outcome) {
	var live []func(Event, Outcome)
	for _, fn := range fns {
		if fn != nil {
			live = append(live, fn)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(ev Event, out Outcome) {
		for _, fn := range live {
			fn(ev, out)
		}
	}
}
