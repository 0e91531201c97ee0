/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(s string, ts time.Time) Snapshot { return Snapshot{Blob: []byte(s), TS: ts} }

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxDepth: 10})
	t0 := time.Now()
	m.Push(snap("a", t0))
	m.Push(snap("b", t0.Add(20*time.Millisecond)))
	if _, depth, _ := m.Stats(); depth != 2 {
		t.Fatalf("expected 2 snapshots, got %d", depth)
	}
	s, ok := m.Undo(snap("c", t0))
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Redo(snap("b", t0))
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if m.CanRedo() {
		t.Fatalf("redo stack not empty")
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(snap("a", t0))
	m.Undo(snap("b", t0))
	if !m.CanRedo() {
		t.Fatalf("expected redo entry")
	}
	m.Push(snap("c", t0.Add(time.Second)))
	if m.CanRedo() {
		t.Fatalf("push kept redo entries")
	}
	if tb, _, _ := m.Stats(); tb != 1 {
		t.Fatalf("bytes = %d", tb)
	}
}

func TestCoalesceKeepsOlderState(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(snap("1", t0))
	m.Push(snap("2", t0.Add(10*time.Millisecond)))
	m.Push(snap("3", t0.Add(40*time.Millisecond))) // within the interval of the refreshed entry
	if _, depth, _ := m.Stats(); depth != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", depth)
	}
	s, ok := m.Undo(snap("now", t0))
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected oldest snapshot '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxDepth: 2})
	for i := 0; i < 10; i++ {
		m.Push(snap("xxxxx", time.Now().Add(time.Duration(i)*time.Millisecond)))
	}
	if tb, depth, _ := m.Stats(); depth != 2 || tb != 10 {
		t.Fatalf("depth cap: depth=%d bytes=%d", depth, tb)
	}

	m = NewManager(Config{MaxBytes: 8})
	t0 := time.Now()
	m.Push(snap("oldx", t0))
	m.Push(snap("midx", t0.Add(time.Second)))
	m.Push(snap("newx", t0.Add(2*time.Second)))
	if tb, depth, _ := m.Stats(); depth != 2 || tb != 8 {
		t.Fatalf("byte cap: depth=%d bytes=%d", depth, tb)
	}
	s, _ := m.Undo(snap("cur", t0))
	s, _ = m.Undo(snap("cur", t0))
	if string(s.Blob) != "midx" {
		t.Fatalf("oldest survivor = %q", s.Blob)
	}
}

func TestClearAndEmpty(t *testing.T) {
	m := NewManager(Config{})
	if _, ok := m.Undo(snap("x", time.Now())); ok {
		t.Fatalf("undo on empty manager")
	}
	if _, ok := m.Redo(snap("x", time.Now())); ok {
		t.Fatalf("redo on empty manager")
	}
	m.Push(snap("abcdef", time.Now()))
	m.Clear()
	if tb, u, r := m.Stats(); tb != 0 || u != 0 || r != 0 {
		t.Fatalf("stats after clear: %d %d %d", tb, u, r)
	}
}
