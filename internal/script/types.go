/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"texpaint/internal/domain"
)

// Coords selects how event positions are read.
type Coords string

const (
	// CoordsTexture positions are texel coordinates in [0,size).
	CoordsTexture Coords = "texture"
	// CoordsUV positions are normalized texture coordinates in [0,1).
	CoordsUV Coords = "uv"
)

// Script is a recorded or hand-written sequence of paint inputs.
type Script struct {
	Name   string        `json:"name,omitempty"`
	Coords Coords        `json:"coords,omitempty"`
	Canvas *CanvasSpec   `json:"canvas,omitempty"`
	Brush  *domain.Brush `json:"brush,omitempty"`
	Steps  []Step        `json:"events"`
}

// CanvasSpec overrides the canvas the script paints on. Zero fields keep the caller's defaults.
type CanvasSpec struct {
	Size   int               `json:"size,omitempty"`
	Wrap   domain.WrapMode   `json:"wrap,omitempty"`
	Filter domain.FilterMode `json:"filter,omitempty"`
	Clear  *domain.Color     `json:"clear,omitempty"`
}

// Step is one scripted input. Type is one of down, drag, end, scroll, brush, resize.
type Step struct {
	Type  string        `json:"type"`
	X     float64       `json:"x,omitempty"`
	Y     float64       `json:"y,omitempty"`
	DY    int           `json:"dy,omitempty"`
	Size  int           `json:"size,omitempty"`
	Brush *domain.Brush `json:"brush,omitempty"`
}

// Error is one schema violation, located by its JSON path inside the script.
type Error struct {
	Field   string
	Message string
}

func (e Error) String() string { return e.Field + ": " + e.Message }
