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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	applog "texpaint/internal/log"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type CanvasConfig struct {
	TextureSize int               `yaml:"texture_size"`
	WrapMode    domain.WrapMode   `yaml:"wrap_mode"`
	FilterMode  domain.FilterMode `yaml:"filter_mode"`
	ClearColor  domain.Color      `yaml:"clear_color"`
}

type BrushConfig struct {
	Size  int          `yaml:"size"`
	Color domain.Color `yaml:"color"`
	Shape string       `yaml:"shape"` // "circle" | "quad"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type JournalConfig struct {
	Enabled             bool `yaml:"enabled"`
	SnapshotOnStrokeEnd bool `yaml:"snapshot_on_stroke_end"`
}

type LiveConfig struct {
	Addr      string `yaml:"addr"`
	Advertise bool   `yaml:"advertise"` // mDNS on the local network
	Instance  string `yaml:"instance"`
}

type GalleryConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Brush         BrushConfig   `yaml:"brush"`
	Logging       LoggingConfig `yaml:"logging"`
	Journal       JournalConfig `yaml:"journal"`
	Live          LiveConfig    `yaml:"live"`
	Gallery       GalleryConfig `yaml:"gallery"`
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas: CanvasConfig{
			TextureSize: 128,
			WrapMode:    domain.WrapClamp,
			FilterMode:  domain.FilterPoint,
			ClearColor:  domain.White,
		},
		Brush:   BrushConfig{Size: 8, Color: domain.Black, Shape: domain.ShapeCircle.String()},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Journal: JournalConfig{Enabled: true, SnapshotOnStrokeEnd: false},
		Live:    LiveConfig{Addr: "127.0.0.1:7878", Advertise: false, Instance: "texpaint"},
		Gallery: GalleryConfig{DSN: "", TimeoutMs: 5000},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath   = "TEXPAINT_CONFIG"
	EnvTextureSize  = "TEXPAINT_TEXTURE_SIZE"
	EnvBrushSize    = "TEXPAINT_BRUSH_SIZE"
	EnvBrushShape   = "TEXPAINT_BRUSH_SHAPE"
	EnvJournal      = "TEXPAINT_JOURNAL"
	EnvLiveAddr     = "TEXPAINT_LIVE_ADDR"
	EnvLiveAdvert   = "TEXPAINT_LIVE_ADVERTISE"
	EnvGalleryDSN   = "TEXPAINT_PG_DSN"
	EnvLogLevel     = "TEXPAINT_LOG_LEVEL"
	EnvLogFormat    = "TEXPAINT_LOG_FORMAT"
	EnvLogSource    = "TEXPAINT_LOG_SOURCE"
	EnvLogFile      = "TEXPAINT_LOG_FILE"
	keyringService  = "texpaint"
	keyringPassword = "gallery_password"
)

// ConfigPath returns the per-user config file path. TEXPAINT_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "texpaint")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "texpaint")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "texpaint")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "texpaint")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, merges environment
// overrides and validates. The gallery password comes from the keyring and is returned
// separately; a missing keyring entry yields "".
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Defaults()
		applyEnvOverrides(&cfg)
		err = cfg.Validate()
	}
	if err != nil {
		return cfg, "", err
	}
	pw, _ := tokenStore.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// LoadFile reads one YAML file on top of the defaults. Unlike Load, a missing or
// malformed file is an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// unset keys keep their defaults, so booleans missing from the file stay at default
	fileCfg := Defaults()
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	mergeInto(&cfg, &fileCfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the user config YAML and persists the gallery password into the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store gallery password: %w", err)
		}
	}
	return nil
}

// Validate checks value ranges. Every failure wraps ErrInvalidConfig.
func (c AppConfig) Validate() error {
	var errs []error
	if err := canvas.ValidateSize(c.Canvas.TextureSize); err != nil {
		errs = append(errs, fmt.Errorf("canvas.texture_size %d not in %d..%d", c.Canvas.TextureSize, canvas.MinSize, canvas.MaxSize))
	}
	if !c.Canvas.WrapMode.Valid() {
		errs = append(errs, fmt.Errorf("canvas.wrap_mode %q", c.Canvas.WrapMode))
	}
	if !c.Canvas.FilterMode.Valid() {
		errs = append(errs, fmt.Errorf("canvas.filter_mode %q", c.Canvas.FilterMode))
	}
	if !c.Canvas.ClearColor.Valid() {
		errs = append(errs, fmt.Errorf("canvas.clear_color out of [0,1]"))
	}
	if c.Brush.Size < 1 {
		errs = append(errs, fmt.Errorf("brush.size %d must be positive", c.Brush.Size))
	}
	if !c.Brush.Color.Valid() {
		errs = append(errs, fmt.Errorf("brush.color out of [0,1]"))
	}
	if _, err := domain.ParseShape(c.Brush.Shape); err != nil {
		errs = append(errs, fmt.Errorf("brush.shape: %w", err))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// BrushValue converts the brush section. Call Validate first; an unknown shape falls back to circle.
func (c AppConfig) BrushValue() domain.Brush {
	shape, _ := domain.ParseShape(c.Brush.Shape)
	return domain.Brush{Size: c.Brush.Size, Color: c.Brush.Color, Shape: shape}
}

// CanvasOptions returns the canvas.New options for this configuration.
func (c AppConfig) CanvasOptions() []canvas.Option {
	return []canvas.Option{
		canvas.WithWrap(c.Canvas.WrapMode),
		canvas.WithFilter(c.Canvas.FilterMode),
		canvas.WithClearColor(c.Canvas.ClearColor),
	}
}

// LogOptions returns the logger settings of the logging section.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}

// Manifest returns the manifest of a new workspace named name with these canvas and brush settings.
func (c AppConfig) Manifest(name string) domain.Manifest {
	return domain.Manifest{
		Name:        name,
		TextureSize: c.Canvas.TextureSize,
		Wrap:        c.Canvas.WrapMode,
		Filter:      c.Canvas.FilterMode,
		ClearColor:  c.Canvas.ClearColor,
		Brush:       c.BrushValue(),
	}
}

// DSNWithPassword injects pw into a URL-style DSN. Key/value DSNs get a password= pair.
func (g GalleryConfig) DSNWithPassword(pw string) string {
	if pw == "" || g.DSN == "" {
		return g.DSN
	}
	if u, err := url.Parse(g.DSN); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, pw)
		return u.String()
	}
	return g.DSN + " password=" + pw
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Canvas.TextureSize != 0 {
		dst.Canvas.TextureSize = src.Canvas.TextureSize
	}
	if src.Canvas.WrapMode != "" {
		dst.Canvas.WrapMode = domain.WrapMode(strings.ToLower(string(src.Canvas.WrapMode)))
	}
	if src.Canvas.FilterMode != "" {
		dst.Canvas.FilterMode = domain.FilterMode(strings.ToLower(string(src.Canvas.FilterMode)))
	}
	// colours copy as-is: transparent is a legitimate clear colour
	dst.Canvas.ClearColor = src.Canvas.ClearColor
	if src.Brush.Size != 0 {
		dst.Brush.Size = src.Brush.Size
	}
	dst.Brush.Color = src.Brush.Color
	if strings.TrimSpace(src.Brush.Shape) != "" {
		dst.Brush.Shape = strings.ToLower(strings.TrimSpace(src.Brush.Shape))
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Journal.Enabled = src.Journal.Enabled
	dst.Journal.SnapshotOnStrokeEnd = src.Journal.SnapshotOnStrokeEnd
	dst.Live.Advertise = src.Live.Advertise
	if src.Live.Addr != "" {
		dst.Live.Addr = src.Live.Addr
	}
	if src.Live.Instance != "" {
		dst.Live.Instance = src.Live.Instance
	}
	if src.Gallery.DSN != "" {
		dst.Gallery.DSN = src.Gallery.DSN
	}
	if src.Gallery.TimeoutMs != 0 {
		dst.Gallery.TimeoutMs = src.Gallery.TimeoutMs
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTextureSize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Canvas.TextureSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrushSize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brush.Size = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrushShape)); v != "" {
		cfg.Brush.Shape = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournal)); v != "" {
		cfg.Journal.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLiveAddr)); v != "" {
		cfg.Live.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLiveAdvert)); v != "" {
		cfg.Live.Advertise = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGalleryDSN)); v != "" {
		cfg.Gallery.DSN = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"canvas.texture_size": EnvTextureSize,
	"brush.size":          EnvBrushSize,
	"brush.shape":         EnvBrushShape,
	"journal.enabled":     EnvJournal,
	"live.addr":           EnvLiveAddr,
	"live.advertise":      EnvLiveAdvert,
	"gallery.dsn":         EnvGalleryDSN,
	"logging.level":       EnvLogLevel,
	"logging.format":      EnvLogFormat,
	"logging.source":      EnvLogSource,
	"logging.file":        EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
