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
	"bytes"
	"fmt"
	"image/png"

	"github.com/jung-kurt/gofpdf"

	"texpaint/internal/canvas"
	"texpaint/internal/storage"
	"texpaint/internal/version"
)

// PDFOptions controls PDF export. Units are points.
// - PageSize: a gofpdf page size name ("A4", "Letter", ...); default A4
// - Margin: page margin, default 36pt
// - Title: printed above the image and stored as document title
// - IncludeInfo: prints size, wrap and filter under the image
type PDFOptions struct {
	PageSize    string
	Margin      float64
	Title       string
	IncludeInfo bool
}

// pdfMinSide is the smallest side the embedded raster is upscaled to, so
// viewers do not smooth a small texture into a blur.
const pdfMinSide = 1024

// ExportPDF places the canvas on a single portrait page, as large as the margins
// allow. It returns the path written.
func ExportPDF(ws *storage.Workspace, c *canvas.Canvas, outPath string, opt PDFOptions) (string, error) {
	if c == nil {
		return "", fmt.Errorf("canvas is nil")
	}
	if opt.PageSize == "" {
		opt.PageSize = "A4"
	}
	if opt.Margin <= 0 {
		opt.Margin = 36
	}
	scale := 1
	for c.Size()*scale < pdfMinSide {
		scale *= 2
	}
	img, err := Render(c, PNGOptions{Scale: scale})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	pdf := gofpdf.New("P", "pt", opt.PageSize, "")
	pdf.SetCreator(version.String(), false)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.AddPage()
	pw, ph := pdf.GetPageSize()
	top := opt.Margin
	if opt.Title != "" {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Text(opt.Margin, top+16, opt.Title)
		top += 28
	}
	side := min(pw-2*opt.Margin, ph-top-opt.Margin-24)
	x := (pw - side) / 2

	iopt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", iopt, &buf)
	pdf.ImageOptions("canvas", x, top, side, side, false, iopt, 0, "")

	if opt.IncludeInfo {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(x, top+side+16, fmt.Sprintf("%d x %d texels, wrap %s, filter %s", c.Size(), c.Size(), c.Wrap(), c.Filter()))
	}

	outPath, err = resolveOut(ws, outPath)
	if err != nil {
		return "", err
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return outPath, nil
}
