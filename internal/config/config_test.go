/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texpaint/internal/domain"
)

type memStore map[string]string

func (m memStore) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", ErrNoSecret
	}
	return v, nil
}
func (m memStore) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memStore) Delete(service, key string) error    { delete(m, service+"/"+key); return nil }

func useTempConfig(t *testing.T) (string, memStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	ms := memStore{}
	prev := SetTokenStore(ms)
	t.Cleanup(func() { SetTokenStore(prev) })
	return path, ms
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	useTempConfig(t)
	cfg, pw, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Defaults() || pw != "" {
		t.Fatalf("got %+v / %q", cfg, pw)
	}
}

func TestEnvOverridesTextureSize(t *testing.T) {
	useTempConfig(t)
	t.Setenv(EnvTextureSize, "256")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.TextureSize != 256 {
		t.Fatalf("TextureSize = %d", cfg.Canvas.TextureSize)
	}
	if name, ok := EnvOverrideFor("canvas.texture_size"); !ok || name != EnvTextureSize {
		t.Fatalf("EnvOverrideFor = %q,%v", name, ok)
	}
	if _, ok := EnvOverrideFor("brush.size"); ok {
		t.Fatalf("brush.size reported as overridden")
	}
}

func TestEnvOverrideOutOfRangeFailsValidation(t *testing.T) {
	useTempConfig(t)
	t.Setenv(EnvTextureSize, "1024")
	if _, _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path, ms := useTempConfig(t)
	cfg := Defaults()
	cfg.Canvas.TextureSize = 64
	cfg.Canvas.WrapMode = domain.WrapRepeat
	cfg.Canvas.ClearColor = domain.Transparent
	cfg.Brush.Shape = "quad"
	cfg.Brush.Color = domain.Color{R: 0.25, G: 0.5, B: 0.75, A: 0.5}
	cfg.Journal.Enabled = false
	cfg.Live.Advertise = true
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if ms["texpaint/gallery_password"] != "s3cret" {
		t.Fatalf("password not stored in keyring: %v", ms)
	}
	got, pw, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != cfg || pw != "s3cret" {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
	if b := got.BrushValue(); b.Shape != domain.ShapeQuad || b.Size != cfg.Brush.Size {
		t.Fatalf("BrushValue = %+v", b)
	}
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "canvas:\n  texture_size: 32\nbrush:\n  shape: square\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Canvas.TextureSize != 32 || cfg.BrushValue().Shape != domain.ShapeQuad {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Journal.Enabled || cfg.Canvas.ClearColor != domain.White || cfg.Live.Addr != Defaults().Live.Addr {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("canvas: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("malformed YAML accepted")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.TextureSize = 1
	cfg.Canvas.FilterMode = "anisotropic"
	cfg.Brush.Shape = "star"
	cfg.Brush.Color.A = 2
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"texture_size", "filter_mode", "brush.shape", "brush.color"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q lacks %q", err, want)
		}
	}
}

func TestDSNWithPassword(t *testing.T) {
	g := GalleryConfig{DSN: "postgres://paint@db.local:5432/gallery?sslmode=disable"}
	got := g.DSNWithPassword("pw")
	if !strings.HasPrefix(got, "postgres://paint:pw@db.local:5432/gallery") {
		t.Fatalf("url DSN = %q", got)
	}
	kv := GalleryConfig{DSN: "host=db user=paint"}
	if got := kv.DSNWithPassword("pw"); got != "host=db user=paint password=pw" {
		t.Fatalf("kv DSN = %q", got)
	}
	if got := g.DSNWithPassword(""); got != g.DSN {
		t.Fatalf("empty password changed DSN")
	}
}

func TestManifestFromConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.TextureSize = 64
	cfg.Brush.Shape = "quad"
	m := cfg.Manifest("scratch")
	if m.Name != "scratch" || m.TextureSize != 64 || m.Wrap != domain.WrapClamp || m.Brush.Shape != domain.ShapeQuad || m.Brush.Size != 8 {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestLogOptionsFollowEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvLogFile, "/tmp/texpaint.log")
	prev := SetTokenStore(memStore{})
	t.Cleanup(func() { SetTokenStore(prev) })
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	o := cfg.LogOptions()
	if o.Level != "debug" || o.Format != "console" || o.File != "/tmp/texpaint.log" {
		t.Fatalf("log options = %+v", o)
	}
}
