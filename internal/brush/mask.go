/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package brush computes brush footprints and blends brush colour into pixels.
package brush

import "texpaint/internal/domain"

// Offset is a cell of the size x size brush grid, relative to its top-left corner.
// A stamp centred on (cx, cy) writes pixel (cx+DX-size/2, cy+DY-size/2).
type Offset struct {
	DX, DY int
}

// Offsets returns the covered cells for a brush, in row-major order.
//
// Quad covers the whole grid. Circle keeps a cell when
// (x-size/2)^2 + (y-size/2)^2 < (size/2 - 0.5)^2, with size/2 in integer
// division; cells exactly on the radius are left out.
// Sizes <= 0 cover nothing.
func Offsets(size int, shape domain.Shape) []Offset {
	if size <= 0 {
		return nil
	}
	if shape == domain.ShapeQuad {
		out := make([]Offset, 0, size*size)
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				out = append(out, Offset{DX: x, DY: y})
			}
		}
		return out
	}
	half := size / 2
	r := float64(half) - 0.5
	r2 := r * r
	var out []Offset
	for y := 0; y < size; y++ {
		y2 := float64((y - half) * (y - half))
		for x := 0; x < size; x++ {
			x2 := float64((x - half) * (x - half))
			if x2+y2 < r2 {
				out = append(out, Offset{DX: x, DY: y})
			}
		}
	}
	return out
}

// Anchor is the value subtracted from a stamp centre to place offset (0,0).
func Anchor(size int) int { return size / 2 }

type maskKey struct {
	size  int
	shape domain.Shape
}

// maxCachedMasks bounds the cache; scroll input can walk through many sizes.
const maxCachedMasks = 64

// MaskCache memoises Offsets per (size, shape). Returned slices are shared
// and must not be modified. Not safe for concurrent use.
type MaskCache struct {
	masks map[maskKey][]Offset
}

// Offsets returns the same cells as the package-level Offsets.
func (c *MaskCache) Offsets(size int, shape domain.Shape) []Offset {
	if size <= 0 {
		return nil
	}
	k := maskKey{size: size, shape: shape}
	if m, ok := c.masks[k]; ok {
		return m
	}
	if c.masks == nil || len(c.masks) >= maxCachedMasks {
		c.masks = make(map[maskKey][]Offset)
	}
	m := Offsets(size, shape)
	c.masks[k] = m
	return m
}

func (c *MaskCache) len() int { return len(c.masks) }
