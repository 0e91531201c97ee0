/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events (paint session summaries,
// export counts) and optional crash reports. Nothing is sent unless the user opts in
// and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "texpaint/internal/log"
	"texpaint/internal/paint"
	"texpaint/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "TEXPAINT_TELEMETRY_OPT_IN"
	EnvEventsURL = "TEXPAINT_TELEMETRY_URL"
	EnvCrashURL  = "TEXPAINT_CRASH_UPLOAD_URL"
	EnvTimeoutMS = "TEXPAINT_TELEMETRY_TIMEOUT_MS"
)

const (
	queueSize      = 64
	defaultTimeout = 1500 * time.Millisecond
	flushGrace     = 500 * time.Millisecond
)

// Config holds runtime configuration for telemetry and crash uploads.
// Without URLs every call is a no-op, even when opted in.
type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
}

// FromEnv reads Config from the TEXPAINT_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:     optedIn(os.Getenv(EnvOptIn)),
		EventsURL: strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:  strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:   defaultTimeout,
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeoutMS))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func optedIn(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// envelope is the JSON body of one event.
type envelope struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client posts events from a bounded queue on its own goroutine. Events are dropped
// on overflow or send errors; painting never waits on the network.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan envelope
	pending atomic.Int64 // queued or in flight
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

func getDefault() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// InitDefault installs a default client from env unless one exists.
func InitDefault() { _ = getDefault() }

// NewDefault replaces the default client with one built from cfg. A previous default
// client is closed.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// New constructs a client and starts its send loop.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan envelope, queueSize),
		closed: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client sends events.
func Enabled() bool { return getDefault().Enabled() }

// Dropped returns how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Event queues a small JSON event. Props must not carry personal data.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	env := envelope{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Props:   props,
	}
	c.pending.Add(1)
	select {
	case c.q <- env:
	default:
		c.pending.Add(-1)
		c.dropped.Add(1)
		c.log.Debug("queue full; event dropped", slog.String("event", name))
	}
}

// Event using the default client.
func Event(name string, props map[string]any) { getDefault().Event(name, props) }

// Flush waits until queued and in-flight events are sent, ctx ends or a short grace
// period passes, whichever comes first.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	grace := time.NewTimer(flushGrace)
	defer grace.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-grace.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the send loop and waits for uploads in flight. Events still queued are dropped.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
	if n := c.pending.Swap(0); n > 0 {
		c.log.Debug("closed with unsent events", slog.Int64("events", n))
	}
}

func (c *Client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case env := <-c.q:
			body, err := json.Marshal(env)
			if err == nil {
				err = c.post(c.cfg.EventsURL, "application/json", body)
			}
			if err != nil {
				c.log.Debug("event not sent", slog.String("event", env.Name), slog.Any("err", err))
			}
			c.pending.Add(-1)
		}
	}
}

func (c *Client) post(url, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "texpaint/"+version.String())
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint answered %s", resp.Status)
	}
	return nil
}

// UploadCrash posts a serialized crash report to the crash URL when opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b); err != nil {
			c.log.Warn("crash report upload failed", slog.Any("err", err))
		}
	}()
}

// UploadCrash using the default client.
func UploadCrash(report []byte) { getDefault().UploadCrash(report) }

// SessionStats tallies a paint session's events for the "session_summary" event.
// Install Observe as (part of) paint.Session.OnEvent.
type SessionStats struct {
	Events   int
	Rejected int
	Strokes  int
	Stamps   int
	Pixels   int
	Resizes  int
	started  time.Time
}

// NewSessionStats starts the session clock.
func NewSessionStats() *SessionStats { return &SessionStats{started: time.Now()} }

// Observe counts one event.
func (st *SessionStats) Observe(ev paint.Event, out paint.Outcome) {
	st.Events++
	if !out.Accepted {
		st.Rejected++
		return
	}
	st.Stamps += out.Stamps
	st.Pixels += out.Pixels
	switch ev.Kind {
	case paint.EventDown:
		st.Strokes++
	case paint.EventResize:
		st.Resizes++
	}
}

// Props renders the tallies as event properties.
func (st *SessionStats) Props() map[string]any {
	return map[string]any{
		"events":     st.Events,
		"rejected":   st.Rejected,
		"strokes":    st.Strokes,
		"stamps":     st.Stamps,
		"pixels":     st.Pixels,
		"resizes":    st.Resizes,
		"duration_s": int(time.Since(st.started).Seconds()),
	}
}

// Report sends the summary through c, or the default client when c is nil.
func (st *SessionStats) Report(c *Client) {
	if c == nil {
		c = getDefault()
	}
	c.Event("session_summary", st.Props())
}

// Shutdown drains and stops the default client, if one was created. Safe to call twice.
func Shutdown() {
	defaultMu.Lock()
	c := defaultClient
	defaultMu.Unlock()
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Flush(ctx)
	c.Close()
}
