/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

const (
	// DigitSide is the edge length of a digit tensor.
	DigitSide = 28
	// digitBox is the edge the ink bounding box is fitted into before centring.
	digitBox = 20
	// inkThreshold is the minimum ink value counted when cropping.
	inkThreshold = 0.05
)

// Tensor is a row-major grayscale image with values in [0,1].
type Tensor struct {
	Width, Height int
	Data          []float32
}

// At returns the value at (x, y).
func (t Tensor) At(x, y int) float32 { return t.Data[y*t.Width+x] }

// DigitTensor prepares a painted digit for a 28x28 handwriting classifier: the image is
// composited over white, converted to inverted luminance (ink = 1), cropped to the ink,
// fitted into 20x20 keeping the aspect ratio, and centred. A blank image gives all zeros.
func DigitTensor(img image.Image) Tensor {
	t := Tensor{Width: DigitSide, Height: DigitSide, Data: make([]float32, DigitSide*DigitSide)}

	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)

	ink, ok := inkBounds(flat)
	if !ok {
		return t
	}
	w, h := ink.Dx(), ink.Dy()
	fw, fh := digitBox, digitBox
	if w > h {
		fh = max(1, h*digitBox/w)
	} else {
		fw = max(1, w*digitBox/h)
	}
	off := image.Pt((DigitSide-fw)/2, (DigitSide-fh)/2)
	dst := image.NewRGBA(image.Rect(0, 0, DigitSide, DigitSide))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(fw, fh))}, flat, ink, xdraw.Src, nil)

	for y := 0; y < DigitSide; y++ {
		for x := 0; x < DigitSide; x++ {
			t.Data[y*DigitSide+x] = inkAt(dst, x, y)
		}
	}
	return t
}

func inkAt(img *image.RGBA, x, y int) float32 {
	i := img.PixOffset(x, y)
	r, g, b := float32(img.Pix[i]), float32(img.Pix[i+1]), float32(img.Pix[i+2])
	lum := (0.299*r + 0.587*g + 0.114*b) / 255
	return min(max(1-lum, 0), 1)
}

func inkBounds(img *image.RGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inkAt(img, x, y) < inkThreshold {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
