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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Publishing tokens are "<base64 claims>.<base64 HMAC-SHA256 of the claims>".
var (
	ErrBadToken     = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const (
	defaultTokenTTL = time.Hour
	maxTokenTTL     = 24 * time.Hour
)

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func mac(secret string, payload []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payload)
	return h.Sum(nil)
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	payload, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(mac(secret, payload)), nil
}

// verifyToken returns the token's subject.
func verifyToken(secret, token string) (string, error) {
	enc := base64.RawURLEncoding
	p, s, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrBadToken
	}
	payload, err := enc.DecodeString(p)
	if err != nil {
		return "", ErrBadToken
	}
	sig, err := enc.DecodeString(s)
	if err != nil || !hmac.Equal(mac(secret, payload), sig) {
		return "", ErrBadToken
	}
	var c tokenClaims
	if err := json.Unmarshal(payload, &c); err != nil || c.Sub == "" {
		return "", ErrBadToken
	}
	if time.Now().Unix() > c.Exp {
		return "", ErrTokenExpired
	}
	return c.Sub, nil
}

// tokenTTL clamps a requested lifetime in seconds.
func tokenTTL(seconds int64) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d <= 0 || d > maxTokenTTL {
		return defaultTokenTTL
	}
	return d
}
