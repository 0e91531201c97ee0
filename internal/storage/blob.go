/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// snapshots are raw float pixels; a 512² canvas is 4 MiB before compression
const maxSnapshotBytes = 8 + 512*512*16

var errBlobOverflow = errors.New("snapshot blob larger than any valid canvas")

type zlibWriterPoolItem struct {
	writer *zlib.Writer
	buf    *bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		buf := new(bytes.Buffer)
		w, _ := zlib.NewWriterLevel(buf, zlib.BestSpeed)
		return &zlibWriterPoolItem{writer: w, buf: buf}
	},
}

// compressBlob zlib-compresses src with a pooled writer.
func compressBlob(src []byte) ([]byte, error) {
	item := zlibWriterPool.Get().(*zlibWriterPoolItem)
	defer zlibWriterPool.Put(item)
	item.buf.Reset()
	item.writer.Reset(item.buf)
	if _, err := item.writer.Write(src); err != nil {
		_ = item.writer.Close()
		return nil, err
	}
	if err := item.writer.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, item.buf.Len())
	copy(out, item.buf.Bytes())
	return out, nil
}

// decompressBlob reverses compressBlob, refusing output beyond maxSnapshotBytes.
func decompressBlob(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("snapshot blob: %w", err)
	}
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(io.LimitReader(r, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("snapshot blob: %w", err)
	}
	if len(out) > maxSnapshotBytes {
		return nil, errBlobOverflow
	}
	return out, nil
}
