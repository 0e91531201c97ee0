/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package stroke fills the gap between two pointer samples with stamp positions.
package stroke

import (
	"iter"
	"math"

	"texpaint/internal/domain"
)

// Interpolate yields the stamp positions for a move from prev to curr.
//
// Without a previous point (stroke start) it yields curr only. Otherwise it
// walks t = 0, 1/d, 2/d, ... below 1 and finishes with t = 1 exactly, where d is
// the euclidean distance, so there is at least one stamp per pixel travelled.
// A zero (or non-finite) distance degrades to the single point curr.
func Interpolate(prev domain.TexCoord, hasPrev bool, curr domain.TexCoord) iter.Seq[domain.TexCoord] {
	return func(yield func(domain.TexCoord) bool) {
		d, ok := distance(prev, hasPrev, curr)
		if !ok {
			yield(curr)
			return
		}
		n := int(math.Ceil(d))
		for i := 0; i < n; i++ {
			// i/d rather than i*step keeps t strictly below 1 for integral d
			if !yield(prev.Lerp(curr, float64(i)/d)) {
				return
			}
		}
		yield(curr)
	}
}

// Count returns how many points Interpolate yields for the same arguments.
func Count(prev domain.TexCoord, hasPrev bool, curr domain.TexCoord) int {
	d, ok := distance(prev, hasPrev, curr)
	if !ok {
		return 1
	}
	return int(math.Ceil(d)) + 1
}

func distance(prev domain.TexCoord, hasPrev bool, curr domain.TexCoord) (float64, bool) {
	if !hasPrev {
		return 0, false
	}
	d := prev.Dist(curr)
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}
