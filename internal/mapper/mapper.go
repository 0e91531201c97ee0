/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package mapper converts host pointer positions into texture space.
package mapper

import "texpaint/internal/domain"

// MapUIPoint maps a screen position inside rect onto a texture of the given extent.
// Axes scale independently, so rect and texture need not share an aspect ratio.
// ok is false when screen lies outside rect.
func MapUIPoint(screen domain.Vec2, rect domain.Rect, extent domain.Vec2) (tc domain.TexCoord, ok bool) {
	if !rect.Contains(screen) {
		return domain.TexCoord{}, false
	}
	lx := screen.X - rect.X
	ly := screen.Y - rect.Y
	return domain.TexCoord{
		X: lx * (extent.X / rect.Width),
		Y: ly * (extent.Y / rect.Height),
	}, true
}

// FromUV scales a surface-hit UV pair in [0,1] to a square texture of the given size.
func FromUV(u, v float64, size int) domain.TexCoord {
	s := float64(size)
	return domain.TexCoord{X: u * s, Y: v * s}
}

// Square is a helper for the common square-texture extent.
func Square(size int) domain.Vec2 {
	return domain.Vec2{X: float64(size), Y: float64(size)}
}
