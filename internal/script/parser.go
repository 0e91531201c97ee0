/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package script reads JSON event scripts: a canvas and brush setup plus a list
// of pointer, scroll, brush and resize inputs. Scripts are validated against an
// embedded JSON Schema and turned into paint events for replay.
package script

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	"texpaint/internal/paint"
)

//go:embed script.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// ErrInvalidScript is wrapped by every validation failure.
var ErrInvalidScript = errors.New("invalid script")

// ValidationError lists every schema violation found in a script.
type ValidationError struct {
	Errors []Error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, er := range e.Errors {
		parts = append(parts, er.String())
	}
	return fmt.Sprintf("%v: %s", ErrInvalidScript, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidScript }

// Validate checks raw JSON against the script schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, re := range result.Errors() {
		ve.Errors = append(ve.Errors, Error{Field: re.Field(), Message: re.Description()})
	}
	return ve
}

// Parse validates and decodes a script.
func Parse(data []byte) (Script, error) {
	if err := Validate(data); err != nil {
		return Script{}, err
	}
	var sc Script
	if err := json.Unmarshal(data, &sc); err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if sc.Coords == "" {
		sc.Coords = CoordsTexture
	}
	return sc, nil
}

// Load reads and parses the script file at path.
func Load(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	sc, err := Parse(b)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Save writes sc as indented JSON to path.
func Save(path string, sc Script) error {
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// Events converts the steps into session events.
func (sc Script) Events() []paint.Event {
	out := make([]paint.Event, 0, len(sc.Steps))
	for _, st := range sc.Steps {
		ev := paint.Event{Kind: paint.EventKind(st.Type)}
		switch ev.Kind {
		case paint.EventDown, paint.EventDrag:
			ev.Pos = domain.Vec2{X: st.X, Y: st.Y}
		case paint.EventScroll:
			ev.DY = st.DY
		case paint.EventBrush:
			ev.Brush = st.Brush
		case paint.EventResize:
			ev.Size = st.Size
		}
		out = append(out, ev)
	}
	return out
}

// Locator returns the locator matching the script's coordinate space.
func (sc Script) Locator() paint.Locator {
	if sc.Coords == CoordsUV {
		return paint.UVLocator{}
	}
	return paint.TextureLocator{}
}

// NewSession builds the canvas and session the script paints on. Canvas and brush
// fields present in the script override size, b and opts.
func (sc Script) NewSession(size int, b domain.Brush, opts ...canvas.Option) (*paint.Session, error) {
	if cs := sc.Canvas; cs != nil {
		if cs.Size > 0 {
			size = cs.Size
		}
		if cs.Wrap != "" {
			opts = append(opts, canvas.WithWrap(cs.Wrap))
		}
		if cs.Filter != "" {
			opts = append(opts, canvas.WithFilter(cs.Filter))
		}
		if cs.Clear != nil {
			opts = append(opts, canvas.WithClearColor(*cs.Clear))
		}
	}
	if sc.Brush != nil {
		b = *sc.Brush
	}
	c, err := canvas.New(size, opts...)
	if err != nil {
		return nil, err
	}
	return paint.NewSession(c, sc.Locator(), b), nil
}

// Run builds a session and replays every step. It returns the session and the
// number of accepted events.
func (sc Script) Run(size int, b domain.Brush, opts ...canvas.Option) (*paint.Session, int, error) {
	s, err := sc.NewSession(size, b, opts...)
	if err != nil {
		return nil, 0, err
	}
	return s, paint.Replay(s, sc.Events()), nil
}

// FromEvents turns session events (e.g. read back from a journal) into a script.
func FromEvents(name string, size int, b domain.Brush, events []paint.Event) Script {
	sc := Script{Name: name, Coords: CoordsTexture, Canvas: &CanvasSpec{Size: size}, Brush: &b}
	for _, ev := range events {
		st := Step{Type: string(ev.Kind)}
		switch ev.Kind {
		case paint.EventDown, paint.EventDrag:
			st.X, st.Y = ev.Pos.X, ev.Pos.Y
		case paint.EventScroll:
			st.DY = ev.DY
		case paint.EventBrush:
			st.Brush = ev.Brush
		case paint.EventResize:
			st.Size = ev.Size
		}
		sc.Steps = append(sc.Steps, st)
	}
	return sc
}

// MarshalJSON writes only the fields that belong to the step's type, so
// pointer steps at x=0 or y=0 still carry both coordinates.
func (st Step) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": st.Type}
	switch paint.EventKind(st.Type) {
	case paint.EventDown, paint.EventDrag:
		m["x"], m["y"] = st.X, st.Y
	case paint.EventScroll:
		m["dy"] = st.DY
	case paint.EventBrush:
		m["brush"] = st.Brush
	case paint.EventResize:
		m["size"] = st.Size
	}
	return json.Marshal(m)
}
