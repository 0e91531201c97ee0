/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"texpaint/internal/domain"
)

// Raw snapshot layout: magic, uint32 size, then size*size*4 float32 channels, little endian.
// Float channels keep translucent accumulation exact across save/restore.
var rawMagic = [4]byte{'T', 'X', 'P', '1'}

var ErrBadSnapshot = errors.New("canvas: malformed snapshot")

// MarshalBinary encodes the pixel buffer losslessly.
func (c *Canvas) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8+len(c.pix)*16)
	copy(out, rawMagic[:])
	binary.LittleEndian.PutUint32(out[4:], uint32(c.size))
	off := 8
	for _, p := range c.pix {
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(p.R))
		binary.LittleEndian.PutUint32(out[off+4:], math.Float32bits(p.G))
		binary.LittleEndian.PutUint32(out[off+8:], math.Float32bits(p.B))
		binary.LittleEndian.PutUint32(out[off+12:], math.Float32bits(p.A))
		off += 16
	}
	return out, nil
}

// UnmarshalBinary restores a buffer written by MarshalBinary, resizing the canvas if needed.
func (c *Canvas) UnmarshalBinary(data []byte) error {
	if len(data) < 8 || [4]byte(data[:4]) != rawMagic {
		return ErrBadSnapshot
	}
	size := int(binary.LittleEndian.Uint32(data[4:]))
	if err := ValidateSize(size); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if len(data) != 8+size*size*16 {
		return fmt.Errorf("%w: %d bytes for size %d", ErrBadSnapshot, len(data), size)
	}
	if err := c.Resize(size); err != nil {
		return err
	}
	off := 8
	for i := range c.pix {
		c.pix[i] = domain.Color{
			R: math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			G: math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			B: math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
			A: math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:])),
		}
		off += 16
	}
	return nil
}
