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
	"fmt"
	"path/filepath"
	"strings"

	"texpaint/internal/canvas"
	"texpaint/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls a batch export of one canvas into several formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it is created under <workspace>/exports/<preset>/.
//   - Files are named <base>.png, <base>-tiled.png and <base>.pdf; Base defaults to "canvas".
//
// Formats: png, tiled, pdf. Empty means the preset defaults.
type BatchOptions struct {
	Preset  PresetName
	Formats []string
	Scale   int // overrides the preset PNG scale when > 0
	OutDir  string
	Base    string
	Title   string
}

// BatchExport runs exports according to the given preset and returns the written paths.
func BatchExport(ws *storage.Workspace, c *canvas.Canvas, opt BatchOptions) ([]string, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(ws.Root, storage.ExportsDirName, baseOut)
	}
	base := opt.Base
	if base == "" {
		base = "canvas"
	}
	scale := presetScale(opt.Preset)
	if opt.Scale > 0 {
		scale = opt.Scale
	}

	var written []string
	for _, f := range formats {
		var (
			path string
			err  error
		)
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "png":
			path, err = ExportPNG(ws, c, filepath.Join(baseOut, base+".png"), PNGOptions{Scale: scale})
		case "tiled":
			path, err = ExportPNG(ws, c, filepath.Join(baseOut, base+"-tiled.png"), PNGOptions{Scale: scale, Tiles: 3})
		case "pdf":
			path, err = ExportPDF(ws, c, filepath.Join(baseOut, base+".pdf"), PDFOptions{Title: opt.Title, IncludeInfo: true})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "tiled"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"png"}
	}
}

func presetScale(p PresetName) int {
	switch p {
	case PresetPrint:
		return 4
	default:
		return 1
	}
}
