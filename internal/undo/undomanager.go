/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps an in-memory undo/redo history of canvas states with
// memory and depth caps.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one reversible state. Blob content is opaque to the manager; its
// size is counted as len(Blob). TS is when the state was captured.
type Snapshot struct {
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap over both stacks; the oldest undo entries go first.
	MaxBytes int
	// MaxDepth limits the undo stack (0 means unlimited).
	MaxDepth int
	// MinInterval coalesces pushes closer than this to the previous one: the older
	// state is kept, so one undo reverts both changes. 0 disables coalescing.
	MinInterval time.Duration
}

// Manager is an undo/redo stack of snapshots. It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       []Snapshot
	redo       []Snapshot
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 * 1024 * 1024
	}
	return &Manager{cfg: cfg}
}

// Push records the state before a change and clears the redo stack.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked()
	if n := len(m.undo); n > 0 && m.cfg.MinInterval > 0 && s.TS.Sub(m.undo[n-1].TS) < m.cfg.MinInterval {
		// refresh the timestamp so a continuous burst stays one entry
		m.undo[n-1].TS = s.TS
		return
	}
	m.undo = append(m.undo, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked()
}

// Undo pops the newest state and parks current on the redo stack.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return Snapshot{}, false
	}
	s := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, current)
	m.totalBytes += len(current.Blob) - len(s.Blob)
	m.enforceCapsLocked()
	return s, true
}

// Redo pops the newest redo state and parks current on the undo stack.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return Snapshot{}, false
	}
	s := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, current)
	m.totalBytes += len(current.Blob) - len(s.Blob)
	m.enforceCapsLocked()
	return s, true
}

// CanUndo reports whether Undo has a state to return.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo, m.totalBytes = nil, nil, 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, undoDepth, redoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo)
}

func (m *Manager) dropRedoLocked() {
	for _, s := range m.redo {
		m.totalBytes -= len(s.Blob)
	}
	m.redo = nil
}

func (m *Manager) enforceCapsLocked() {
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		toDrop := len(m.undo) - m.cfg.MaxDepth
		for i := 0; i < toDrop; i++ {
			m.totalBytes -= len(m.undo[i].Blob)
		}
		m.undo = append([]Snapshot{}, m.undo[toDrop:]...)
	}
	// the redo stack is only ever trimmed by new pushes
	for m.totalBytes > m.cfg.MaxBytes && len(m.undo) > 0 {
		m.totalBytes -= len(m.undo[0].Blob)
		m.undo = m.undo[1:]
	}
}
