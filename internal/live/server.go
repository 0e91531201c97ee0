/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package live serves a paint session over HTTP: every canvas flush is pushed to
// websocket viewers as a PNG frame, and viewers may paint back with UV pointer
// messages. All session access happens on the server's single run loop.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/mdns"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/paint"
)

const (
	// ServiceType is the mDNS service the live view advertises.
	ServiceType = "_texpaint._tcp"

	writeWait    = 5 * time.Second
	maxMsgBytes  = 4096
	clientQueue  = 8
	jobQueue     = 256
	shutdownWait = 3 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr      string // listen address for ListenAndServe, e.g. 127.0.0.1:7878
	Advertise bool   // announce the service via mDNS
	Instance  string // mDNS instance name
}

// Message is a viewer input. Type is down, drag, end or scroll; U and V are surface
// UVs in [0,1) for pointer messages.
type Message struct {
	Type string  `json:"type"`
	U    float64 `json:"u,omitempty"`
	V    float64 `json:"v,omitempty"`
	DY   int     `json:"dy,omitempty"`
}

// Hello is the first text message a viewer receives.
type Hello struct {
	Type   string            `json:"type"`
	Size   int               `json:"size"`
	Wrap   domain.WrapMode   `json:"wrap"`
	Filter domain.FilterMode `json:"filter"`
	Seq    uint64            `json:"seq"`
}

// ErrStopped is returned by Do after the run loop has exited.
var ErrStopped = errors.New("live server stopped")

// Server owns a paint session while running.
type Server struct {
	s    *paint.Session
	opt  Options
	log  *slog.Logger
	jobs chan func(*paint.Session)
	done chan struct{}

	detach func() // removes the server from the canvas surfaces

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte // latest frame as PNG
	frames  uint64
}

type outMsg struct {
	kind int
	data []byte
}

type client struct {
	conn   *websocket.Conn
	send   chan outMsg
	closed bool
}

// New wraps s. The session's locator is switched to UV since viewers send UVs.
func New(s *paint.Session, opt Options) *Server {
	if opt.Instance == "" {
		opt.Instance = "texpaint"
	}
	srv := &Server{
		s:       s,
		opt:     opt,
		log:     applog.WithComponent("live"),
		jobs:    make(chan func(*paint.Session), jobQueue),
		done:    make(chan struct{}),
		clients: map[*client]struct{}{},
	}
	s.SetLocator(paint.UVLocator{})
	srv.detach = s.Canvas().Attach(srv)
	return srv
}

// Handler exposes /ws (viewer socket), /frame.png (latest frame) and /healthz.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.serveWS)
	mux.HandleFunc("/frame.png", srv.serveFrame)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run executes submitted jobs one at a time until ctx is done. On return the
// server no longer receives frames from the session's canvas.
func (srv *Server) Run(ctx context.Context) error {
	defer close(srv.done)
	for {
		select {
		case <-ctx.Done():
			srv.detach()
			srv.closeClients()
			return ctx.Err()
		case job := <-srv.jobs:
			job(srv.s)
		}
	}
}

// Do runs fn on the run loop and waits for it.
func (srv *Server) Do(ctx context.Context, fn func(*paint.Session)) error {
	finished := make(chan struct{})
	job := func(s *paint.Session) {
		defer close(finished)
		fn(s)
	}
	select {
	case srv.jobs <- job:
	case <-srv.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-srv.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues an event without waiting. It reports false when the queue is full
// or the loop has stopped.
func (srv *Server) Submit(ev paint.Event) bool {
	select {
	case <-srv.done:
		return false
	default:
	}
	select {
	case srv.jobs <- func(s *paint.Session) { s.Apply(ev) }:
		return true
	default:
		return false
	}
}

// ListenAndServe listens on Options.Addr, optionally advertises via mDNS, and serves
// until ctx is done. ready, when non-nil, receives the bound address.
func (srv *Server) ListenAndServe(ctx context.Context, ready func(addr string)) error {
	l := applog.WithOperation(srv.log, "serve")
	ln, err := net.Listen("tcp", srv.opt.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.opt.Addr, err)
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	addr := ln.Addr().String()
	l.Info("live view listening", slog.String("addr", addr))

	if srv.opt.Advertise {
		if md, err := advertise(srv.opt.Instance, ln.Addr().(*net.TCPAddr).Port); err != nil {
			l.Warn("mdns advertise failed", slog.Any("err", err))
		} else {
			defer func() { _ = md.Shutdown() }()
		}
	}
	if ready != nil {
		ready(addr)
	}

	runErr := srv.Run(ctx)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		l.Warn("http shutdown", slog.Any("err", err))
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// Present implements canvas.Surface. It runs on the loop via Canvas.Flush.
func (srv *Server) Present(f *canvas.Frame) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Pixels); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.last = buf.Bytes()
	srv.frames++
	for c := range srv.clients {
		c.enqueue(outMsg{websocket.BinaryMessage, srv.last})
	}
	return nil
}

// Frames returns how many frames were presented.
func (srv *Server) Frames() uint64 {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.frames
}

func (srv *Server) serveFrame(w http.ResponseWriter, _ *http.Request) {
	srv.mu.Lock()
	b := srv.last
	srv.mu.Unlock()
	if b == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

func (srv *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Debug("websocket upgrade failed", slog.Any("err", err))
		return
	}
	conn.SetReadLimit(maxMsgBytes)
	c := &client{conn: conn, send: make(chan outMsg, clientQueue)}
	srv.mu.Lock()
	srv.clients[c] = struct{}{}
	srv.mu.Unlock()
	l := srv.log.With(slog.String("remote", r.RemoteAddr))
	l.Info("viewer connected")

	go srv.writeLoop(c)
	// greet from the loop so the canvas is read there
	_ = srv.Do(r.Context(), func(s *paint.Session) { srv.greet(c, s) })

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug("viewer read ended", slog.Any("err", err))
			}
			break
		}
		ev, ok := m.Event()
		if !ok {
			l.Debug("viewer message ignored", slog.String("type", m.Type))
			continue
		}
		if !srv.Submit(ev) {
			l.Warn("event dropped; loop busy or stopped", slog.String("type", m.Type))
		}
	}
	srv.drop(c)
	l.Info("viewer disconnected")
}

func (srv *Server) greet(c *client, s *paint.Session) {
	cv := s.Canvas()
	hello, _ := json.Marshal(Hello{Type: "hello", Size: cv.Size(), Wrap: cv.Wrap(), Filter: cv.Filter(), Seq: cv.Seq()})
	var buf bytes.Buffer
	if err := png.Encode(&buf, cv.Image()); err != nil {
		srv.log.Warn("encode initial frame", slog.Any("err", err))
		return
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	c.enqueue(outMsg{websocket.TextMessage, hello})
	c.enqueue(outMsg{websocket.BinaryMessage, buf.Bytes()})
}

func (srv *Server) writeLoop(c *client) {
	for m := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
			srv.log.Debug("viewer write failed", slog.Any("err", err))
			_ = c.conn.Close()
			srv.drop(c)
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// enqueue drops the message when the viewer is slow. Callers hold srv.mu.
func (c *client) enqueue(m outMsg) {
	if c.closed {
		return
	}
	select {
	case c.send <- m:
	default:
	}
}

func (srv *Server) drop(c *client) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	delete(srv.clients, c)
	close(c.send)
}

func (srv *Server) closeClients() {
	srv.mu.Lock()
	cs := make([]*client, 0, len(srv.clients))
	for c := range srv.clients {
		cs = append(cs, c)
	}
	srv.mu.Unlock()
	for _, c := range cs {
		srv.drop(c)
	}
}

// Event converts a viewer message into a session event.
func (m Message) Event() (paint.Event, bool) {
	switch paint.EventKind(m.Type) {
	case paint.EventDown, paint.EventDrag:
		return paint.Event{Kind: paint.EventKind(m.Type), Pos: domain.Vec2{X: m.U, Y: m.V}}, true
	case paint.EventEnd:
		return paint.Event{Kind: paint.EventEnd}, true
	case paint.EventScroll:
		return paint.Event{Kind: paint.EventScroll, DY: m.DY}, true
	}
	return paint.Event{}, false
}

// advertise announces the live view on the local network.
func advertise(instance string, port int) (*mdns.Server, error) {
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{"texpaint live view", "path=/ws"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}
