/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// Manifest is the canonical description of a workspace (texpaint.json).
// The pixels themselves live next to it in canvas.png.
type Manifest struct {
	Name        string     `json:"name"`
	TextureSize int        `json:"textureSize"`
	Wrap        WrapMode   `json:"wrap"`
	Filter      FilterMode `json:"filter"`
	ClearColor  Color      `json:"clearColor"`
	Brush       Brush      `json:"brush"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated,omitempty"`
}
