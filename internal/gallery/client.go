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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a gallery HTTP API.
type Client struct {
	BaseURL string
	Token   string // bearer token for Publish
	client  *http.Client
}

// NewClient creates a client. A trailing slash on baseURL is ignored.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error != "" {
			return nil, fmt.Errorf("gallery %s %s: %s: %s", method, path, resp.Status, e.Error)
		}
		return nil, fmt.Errorf("gallery %s %s: %s", method, path, resp.Status)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// RequestToken asks the server for a bearer token and stores it on the client.
func (c *Client) RequestToken(ctx context.Context, subject string) error {
	body, _ := json.Marshal(map[string]any{"subject": subject})
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", bytes.NewReader(body), "application/json", &out); err != nil {
		return err
	}
	c.Token = out.Token
	return nil
}

// List returns the newest items.
func (c *Client) List(ctx context.Context, limit int) ([]Item, error) {
	var items []Item
	if err := c.doJSON(ctx, http.MethodGet, "/api/gallery?limit="+strconv.Itoa(limit), nil, "", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Image downloads the PNG of an item.
func (c *Client) Image(ctx context.Context, id int64) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/gallery/%d/image.png", id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxPNGBytes))
}

// Publish uploads e. Author is taken from the token subject on the server.
func (c *Client) Publish(ctx context.Context, e Entry) (int64, error) {
	q := url.Values{}
	q.Set("title", e.Title)
	q.Set("size", strconv.Itoa(e.TextureSize))
	q.Set("wrap", string(e.Wrap))
	q.Set("filter", string(e.Filter))
	if e.SessionID != "" {
		q.Set("session", e.SessionID)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/gallery?"+q.Encode(), bytes.NewReader(e.PNG), "image/png", &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}
