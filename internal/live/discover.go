/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// Peer is a live view found on the local network.
type Peer struct {
	Instance string
	Addr     string // host:port
	Info     []string
}

// URL returns the viewer websocket URL.
func (p Peer) URL() string { return "ws://" + p.Addr + "/ws" }

// Discover browses mDNS for live views for up to timeout.
func Discover(timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var peers []Peer
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		seen := map[string]bool{}
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			addr := fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)
			if seen[addr] {
				continue
			}
			seen[addr] = true
			peers = append(peers, Peer{Instance: instanceName(e.Name), Addr: addr, Info: e.InfoFields})
		}
	}()
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-collected
	if err != nil {
		return peers, fmt.Errorf("mdns query: %w", err)
	}
	return peers, nil
}

// instanceName strips the service suffix from a full mDNS name.
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i > 0 {
		return strings.ReplaceAll(full[:i], "\\ ", " ")
	}
	return full
}
