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

import (
	"testing"

	"texpaint/internal/domain"
)

func offsetSet(offs []Offset) map[Offset]bool {
	m := make(map[Offset]bool, len(offs))
	for _, o := range offs {
		m[o] = true
	}
	return m
}

func TestQuadCoversWholeGrid(t *testing.T) {
	offs := Offsets(5, domain.ShapeQuad)
	if len(offs) != 25 {
		t.Fatalf("len = %d, want 25", len(offs))
	}
	set := offsetSet(offs)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if !set[Offset{x, y}] {
				t.Fatalf("missing %d,%d", x, y)
			}
		}
	}
}

func TestNonPositiveSizeIsEmpty(t *testing.T) {
	for _, n := range []int{0, -1, -40} {
		for _, s := range []domain.Shape{domain.ShapeCircle, domain.ShapeQuad} {
			if got := Offsets(n, s); len(got) != 0 {
				t.Fatalf("Offsets(%d,%v) = %d cells", n, s, len(got))
			}
		}
	}
}

func TestCircleSize8(t *testing.T) {
	set := offsetSet(Offsets(8, domain.ShapeCircle))
	// centre cell
	if !set[Offset{4, 4}] {
		t.Fatalf("centre not covered")
	}
	// bounding box corners
	for _, o := range []Offset{{0, 0}, {7, 0}, {0, 7}, {7, 7}} {
		if set[o] {
			t.Fatalf("corner %+v covered", o)
		}
	}
	// (4,1): dy=-3 -> 9 < 12.25, (4,0): dy=-4 -> 16 excluded
	if !set[Offset{4, 1}] || set[Offset{4, 0}] {
		t.Fatalf("vertical extent wrong")
	}
	// (1,2): 9+4 = 13 >= 12.25 excluded; (2,2): 4+4 = 8 included
	if set[Offset{1, 2}] || !set[Offset{2, 2}] {
		t.Fatalf("diagonal boundary wrong")
	}
}

func TestCircleBoundaryIsStrict(t *testing.T) {
	// size 2: half=1, r2=0.25; only (1,1) has distance 0.
	offs := Offsets(2, domain.ShapeCircle)
	if len(offs) != 1 || offs[0] != (Offset{1, 1}) {
		t.Fatalf("Offsets(2, circle) = %+v", offs)
	}
	// size 1: half=0, r2=0.25, cell (0,0) is at distance 0 -> included.
	if got := Offsets(1, domain.ShapeCircle); len(got) != 1 {
		t.Fatalf("Offsets(1, circle) = %+v", got)
	}
}

func TestCircleEvenSizeIsPointSymmetric(t *testing.T) {
	for size := 2; size <= 40; size += 2 {
		set := offsetSet(Offsets(size, domain.ShapeCircle))
		h := size / 2
		for o := range set {
			r := Offset{DX: 2*h - o.DX, DY: 2*h - o.DY}
			if !set[r] {
				t.Fatalf("size %d: %+v present but rotated %+v missing", size, o, r)
			}
		}
	}
}

func TestMaskCacheMatchesOffsets(t *testing.T) {
	var c MaskCache
	for size := -2; size < 20; size++ {
		for _, s := range []domain.Shape{domain.ShapeCircle, domain.ShapeQuad} {
			want := Offsets(size, s)
			for pass := 0; pass < 2; pass++ {
				got := c.Offsets(size, s)
				if len(got) != len(want) {
					t.Fatalf("size %d %v pass %d: %d cells, want %d", size, s, pass, len(got), len(want))
				}
				for i := range got {
					if got[i] != want[i] {
						t.Fatalf("size %d %v: cell %d differs", size, s, i)
					}
				}
			}
		}
	}
	if c.len() > maxCachedMasks {
		t.Fatalf("cache grew past its cap: %d", c.len())
	}
}

func TestBlendOpaqueOverwritesAndIsIdempotent(t *testing.T) {
	existing := domain.Color{R: 0.3, G: 0.6, B: 0.9, A: 0.2}
	b := domain.Color{R: 0.7, G: 0.1, B: 0, A: 1}
	once := Blend(existing, b)
	if once != b {
		t.Fatalf("opaque blend = %+v, want %+v", once, b)
	}
	if twice := Blend(once, b); twice != once {
		t.Fatalf("second opaque blend changed pixel: %+v", twice)
	}
}

func TestBlendZeroAlphaKeepsPixel(t *testing.T) {
	existing := domain.Color{R: 0.4, G: 0.4, B: 0.4, A: 1}
	if got := Blend(existing, domain.Color{R: 1, A: 0}); got != existing {
		t.Fatalf("alpha 0 changed pixel: %+v", got)
	}
}

// channelResolution is the float32 spacing just below 1. A channel closer to its target
// than channelResolution/(2a) can no longer move under a blend of strength a.
const channelResolution = 1.0 / (1 << 24)

func TestBlendTranslucentConvergesMonotonically(t *testing.T) {
	for _, a := range []float32{0.05, 0.25, 0.5, 0.9} {
		target := domain.Color{R: 0.2, G: 0.8, B: 0.1, A: a}
		px := domain.Color{R: 1, G: 0, B: 1, A: 1}
		prev := px.Distance(target)
		settled := 2 * channelResolution / float64(a)
		for i := 0; i < 400; i++ {
			next := Blend(px, target)
			d := next.Distance(target)
			switch {
			case prev > settled && !(d < prev):
				t.Fatalf("alpha %v step %d: distance %v did not decrease from %v", a, i, d, prev)
			case d > prev:
				t.Fatalf("alpha %v step %d: distance grew from %v to %v", a, i, prev, d)
			}
			if overshoots(px.R, next.R, target.R) || overshoots(px.G, next.G, target.G) ||
				overshoots(px.B, next.B, target.B) || overshoots(px.A, next.A, target.A) {
				t.Fatalf("alpha %v step %d: %+v passed the target %+v", a, i, next, target)
			}
			px, prev = next, d
		}
	}
}

func overshoots(from, to, target float32) bool {
	if from <= target {
		return to > target
	}
	return to < target
}

func TestBlendAtTargetIsFixedPoint(t *testing.T) {
	target := domain.Color{R: 0.3, G: 0.7, B: 0.11, A: 0.35}
	if got := Blend(target, target); got != target {
		t.Fatalf("blend onto itself = %+v", got)
	}
}

func TestBlendClampsOutOfRangeAlpha(t *testing.T) {
	got := Blend(domain.White, domain.Color{A: 2})
	if got != domain.Black {
		t.Fatalf("alpha 2 = %+v, want opaque black", got)
	}
	if got := Blend(domain.White, domain.Color{R: 0.5, A: -1}); got != domain.White {
		t.Fatalf("negative alpha = %+v", got)
	}
}

func TestBlendHalfBlackOnWhite(t *testing.T) {
	white := domain.White
	black := domain.Color{A: 0.5}
	once := Blend(white, black)
	if once.R != 0.5 || once.G != 0.5 || once.B != 0.5 {
		t.Fatalf("one pass = %+v, want mid-gray", once)
	}
	twice := Blend(once, black)
	if !(twice.R < once.R) || twice.R == 0 {
		t.Fatalf("two passes = %+v, want darker than mid-gray but not black", twice)
	}
}
