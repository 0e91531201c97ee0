/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders a painted canvas to files: PNG (optionally upscaled with the
// canvas filter mode or tiled with its wrap mode), a PDF sheet, and a 28x28 digit tensor.
package export

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/storage"
)

// maxExportSide caps the pixel size of any raster export.
const maxExportSide = 8192

// PNGOptions controls PNG export.
// - Scale: integer upscale factor, resampled with the canvas filter mode (default 1)
// - Tiles: when > 1, renders Tiles x Tiles copies laid out with the canvas wrap mode
type PNGOptions struct {
	Scale int
	Tiles int
}

// ExportPNG writes the canvas as PNG. Relative paths land in the workspace exports
// folder when ws is non-nil. It returns the path written.
func ExportPNG(ws *storage.Workspace, c *canvas.Canvas, outPath string, opt PNGOptions) (string, error) {
	if c == nil {
		return "", fmt.Errorf("canvas is nil")
	}
	img, err := Render(c, opt)
	if err != nil {
		return "", err
	}
	outPath, err = resolveOut(ws, outPath)
	if err != nil {
		return "", err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	applog.WithComponent("export").Info("png exported", slog.String("path", outPath), slog.Int("side", img.Bounds().Dx()))
	return outPath, nil
}

// Render applies tiling and scaling to the canvas image.
func Render(c *canvas.Canvas, opt PNGOptions) (*image.NRGBA, error) {
	scale, tiles := max(opt.Scale, 1), max(opt.Tiles, 1)
	if side := c.Size() * scale * tiles; side > maxExportSide {
		return nil, fmt.Errorf("export of %dx%d px exceeds the %d px limit", side, side, maxExportSide)
	}
	img := c.Image()
	if tiles > 1 {
		img = Tile(img, tiles, c.Wrap())
	}
	if scale > 1 {
		img = Scale(img, scale, c.Filter())
	}
	return img, nil
}

// Scale resizes img by an integer factor using the resampler matching the filter mode:
// point keeps hard texel edges, bilinear blends neighbours, trilinear uses Catmull-Rom.
func Scale(img image.Image, factor int, filter domain.FilterMode) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	Interpolator(filter).Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Interpolator maps a filter mode to its x/image resampler.
func Interpolator(filter domain.FilterMode) xdraw.Interpolator {
	switch filter {
	case domain.FilterBilinear:
		return xdraw.BiLinear
	case domain.FilterTrilinear:
		return xdraw.CatmullRom
	default:
		return xdraw.NearestNeighbor
	}
}

// Tile lays out n x n copies of a square texture the way a sampler with the given
// wrap mode would read coordinates in [0,n): repeat copies, mirror flips every other
// tile, clamp stretches the edge texels.
func Tile(img *image.NRGBA, n int, wrap domain.WrapMode) *image.NRGBA {
	s := img.Bounds().Dx()
	out := image.NewNRGBA(image.Rect(0, 0, s*n, s*n))
	for y := 0; y < s*n; y++ {
		sy := wrapIndex(y, s, wrap)
		for x := 0; x < s*n; x++ {
			sx := wrapIndex(x, s, wrap)
			si := img.PixOffset(sx+img.Rect.Min.X, sy+img.Rect.Min.Y)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return out
}

func wrapIndex(i, s int, wrap domain.WrapMode) int {
	switch wrap {
	case domain.WrapRepeat:
		return i % s
	case domain.WrapMirror:
		m := i % (2 * s)
		if m >= s {
			return 2*s - 1 - m
		}
		return m
	default:
		return min(i, s-1)
	}
}

func resolveOut(ws *storage.Workspace, outPath string) (string, error) {
	if outPath == "" {
		return "", fmt.Errorf("output path is empty")
	}
	if ws != nil && !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ws.Root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return outPath, nil
}
