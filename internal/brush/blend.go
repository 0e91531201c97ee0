/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package brush

import "texpaint/internal/domain"

// Blend moves existing toward brush by brush.A on every channel, alpha included.
// This is a plain lerp and not source-over compositing: a = 1 replaces the pixel,
// a = 0 leaves it alone, and repeated passes keep converging on brush without
// overshooting it. brush.A is clamped to [0,1] first, also as the target alpha.
func Blend(existing, brush domain.Color) domain.Color {
	a := brush.A
	switch {
	case a <= 0:
		return existing
	case a >= 1:
		brush.A = 1
		return brush
	}
	return domain.Color{
		R: lerp(existing.R, brush.R, a),
		G: lerp(existing.G, brush.G, a),
		B: lerp(existing.B, brush.B, a),
		A: lerp(existing.A, a, a),
	}
}

// lerp rounds between from and to inclusive, so a pixel already at the target stays there.
func lerp(from, to, t float32) float32 { return from + (to-from)*t }
