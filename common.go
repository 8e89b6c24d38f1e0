// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Common sizes and pooled byte slices shared by the buffer, request, and
// handler code.

package goahead

import "sync"

const ( // units
	K = 1 << 10
	M = 1 << 20
)

const ( // pooled size classes, smallest to largest
	sizeStock = 1 * K  // per-request stock buffer, no pool involved
	size4K    = 4 * K
	size16K   = 16 * K
	size64K   = 64*K - 1
)

var ( // size-class pools
	pool4K  sync.Pool
	pool16K sync.Pool
	pool64K sync.Pool
)

func get4K() []byte  { return getSized(&pool4K, size4K) }
func get16K() []byte { return getSized(&pool16K, size16K) }
func get64K() []byte { return getSized(&pool64K, size64K) }

// getNK returns a pooled buffer whose capacity is at least n, choosing the
// smallest size class that fits.
func getNK(n int) []byte {
	switch {
	case n <= size4K:
		return get4K()
	case n <= size16K:
		return get16K()
	default:
		return get64K()
	}
}

func getSized(pool *sync.Pool, size int) []byte {
	if x := pool.Get(); x != nil {
		b := x.([]byte)
		return b[:size]
	}
	return make([]byte, size)
}

func putNK(p []byte) {
	switch cap(p) {
	case size4K:
		pool4K.Put(p) //nolint:staticcheck // pool wants the full-cap slice back
	case size16K:
		pool16K.Put(p)
	case size64K:
		pool64K.Put(p)
	default:
		// not a pooled size, let GC reclaim it
	}
}
