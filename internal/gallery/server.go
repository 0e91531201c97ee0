/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"texpaint/internal/domain"
	applog "texpaint/internal/log"
	"texpaint/internal/version"
)

var errPublishingDisabled = errors.New("publishing disabled")

type server struct {
	b      Backend
	secret string
	log    *slog.Logger
}

// NewHandler exposes the gallery over HTTP:
//
//	GET  /healthz, /readyz, /version
//	POST /api/auth/token            -> {token, expires_at}
//	GET  /api/gallery               -> []Item (newest first, ?limit=)
//	GET  /api/gallery/{id}          -> Item
//	GET  /api/gallery/{id}/image.png
//	POST /api/gallery?title=&size=&wrap=&filter=&session=  (bearer token, PNG body)
//
// An empty secret disables token issuing and publishing.
func NewHandler(b Backend, secret string) http.Handler {
	s := &server{b: b, secret: secret, log: applog.WithComponent("gallery_http")}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { text(w, http.StatusOK, "ok") })
	mux.HandleFunc("GET /readyz", s.ready)
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, _ *http.Request) { text(w, http.StatusOK, version.String()) })
	mux.HandleFunc("POST /api/auth/token", s.issueToken)
	mux.HandleFunc("GET /api/gallery", s.list)
	mux.HandleFunc("GET /api/gallery/{id}", s.item)
	mux.HandleFunc("GET /api/gallery/{id}/image.png", s.image)
	mux.HandleFunc("POST /api/gallery", s.authed(s.publish))
	return mux
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.b.Ping(ctx); err != nil {
		text(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	text(w, http.StatusOK, "ready")
}

// issueToken accepts an optional JSON body {"subject": "...", "ttl_seconds": n}.
func (s *server) issueToken(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" {
		writeError(w, http.StatusForbidden, errPublishingDisabled)
		return
	}
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	_ = json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req)
	if strings.TrimSpace(req.Subject) == "" {
		req.Subject = "anonymous"
	}
	exp := time.Now().Add(tokenTTL(req.TTLSeconds))
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.b.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *server) item(w http.ResponseWriter, r *http.Request) {
	if it, _, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, it)
	}
}

func (s *server) image(w http.ResponseWriter, r *http.Request) {
	_, png, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

func (s *server) publish(w http.ResponseWriter, r *http.Request, author string) {
	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("size"))
	png, err := io.ReadAll(io.LimitReader(r.Body, maxPNGBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e := Entry{
		Title:       q.Get("title"),
		Author:      author,
		SessionID:   q.Get("session"),
		TextureSize: size,
		Wrap:        domain.WrapMode(q.Get("wrap")),
		Filter:      domain.FilterMode(q.Get("filter")),
		PNG:         png,
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.b.Publish(r.Context(), e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.InfoContext(r.Context(), "published via api", slog.Int64("id", id), slog.String("author", author))
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) (Item, []byte, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid gallery id"))
		return Item{}, nil, false
	}
	it, png, err := s.b.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return Item{}, nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return Item{}, nil, false
	}
	return it, png, true
}

// authed requires "Authorization: Bearer <token>" and passes the token subject on.
func (s *server) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			writeError(w, http.StatusForbidden, errPublishingDisabled)
			return
		}
		scheme, tok, _ := strings.Cut(r.Header.Get("Authorization"), " ")
		if !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		sub, err := verifyToken(s.secret, strings.TrimSpace(tok))
		if err != nil {
			s.log.DebugContext(r.Context(), "token rejected", slog.Any("err", err))
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, sub)
	}
}

func text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
