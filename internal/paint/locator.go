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
	"texpaint/internal/domain"
	"texpaint/internal/mapper"
)

// Locator turns a raw pointer position into texture space for a canvas of the given size.
// ok=false means the pointer is not over the paintable area.
type Locator interface {
	Locate(pos domain.Vec2, size int) (domain.TexCoord, bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(pos domain.Vec2, size int) (domain.TexCoord, bool)

func (fn LocatorFunc) Locate(pos domain.Vec2, size int) (domain.TexCoord, bool) {
	return fn(pos, size)
}

// UILocator maps screen positions inside a UI rectangle that displays the canvas.
type UILocator struct {
	Rect domain.Rect
}

func (l UILocator) Locate(pos domain.Vec2, size int) (domain.TexCoord, bool) {
	return mapper.MapUIPoint(pos, l.Rect, mapper.Square(size))
}

// UVLocator treats positions as surface UVs in [0,1], as produced by a ray hit.
type UVLocator struct{}

func (UVLocator) Locate(pos domain.Vec2, size int) (domain.TexCoord, bool) {
	return mapper.FromUV(pos.X, pos.Y, size), true
}

// TextureLocator passes positions through; they are already texture coordinates.
type TextureLocator struct{}

func (TextureLocator) Locate(pos domain.Vec2, _ int) (domain.TexCoord, bool) {
	return domain.TexCoord{X: pos.X, Y: pos.Y}, true
}
