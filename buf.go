// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Buffer & I/O primitives (component A). A growable byte buffer with a
// service cursor (next unread byte) and an edge cursor (next free byte),
// supporting the "consume N bytes from the front, append M at the back"
// pattern HTTP/1.x parsing needs without copying on every call.

package goahead

import (
	"io"
	"net"

	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned by reserve when growth would exceed maxSize.
var ErrOutOfMemory = errors.New("goahead: buffer growth exceeds configured ceiling")

// Buffer is a growable ring-style byte buffer used for both the read side
// (incremental request parsing) and the write side (response assembly) of
// a Request. It is not safe for concurrent use; each Request owns two
// private instances.
type Buffer struct {
	data    []byte // backing storage; cap(data) is the buffer end
	next    int32  // service cursor: index of the next unread byte
	edge    int32  // index one past the last written byte
	maxSize int32  // growth ceiling; 0 means unbounded
	stock   [sizeStock]byte
	pooled  bool // true if data was fetched from a size-class pool
}

// initBuffer wires a Buffer to use its stock array until growth is needed.
func (b *Buffer) initBuffer(maxSize int32) {
	b.data = b.stock[:]
	b.next, b.edge = 0, 0
	b.maxSize = maxSize
	b.pooled = false
}

// free returns any pooled backing storage. Safe to call on a zero Buffer.
func (b *Buffer) free() {
	if b.pooled {
		putNK(b.data)
	}
	b.data = nil
	b.next, b.edge = 0, 0
	b.pooled = false
}

// Len returns the number of unread bytes currently buffered.
func (b *Buffer) Len() int { return int(b.edge - b.next) }

// Cap returns the current backing capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the unread portion of the buffer. The slice is only valid
// until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data[b.next:b.edge] }

// reserve ensures at least n more bytes can be appended at the edge cursor,
// compacting first and growing the backing array through the size-class
// pools if compaction alone isn't enough.
func (b *Buffer) reserve(n int) error {
	if b.maxSize > 0 && b.Len()+n > int(b.maxSize) {
		return ErrOutOfMemory
	}
	if int(b.edge)+n <= cap(b.data) {
		return nil
	}
	b.compact()
	if int(b.edge)+n <= cap(b.data) {
		return nil
	}
	needed := int(b.edge) + n
	var grown []byte
	if needed <= size64K {
		grown = getNK(needed)
	} else {
		grown = make([]byte, needed)
	}
	copy(grown, b.data[:b.edge])
	if b.pooled {
		putNK(b.data)
	}
	b.data = grown
	b.pooled = cap(grown) <= size64K
	return nil
}

// compact slides the unread bytes [next, edge) down to index 0, reclaiming
// the space consumed by already-serviced bytes at the front.
func (b *Buffer) compact() {
	if b.next == 0 {
		return
	}
	n := copy(b.data, b.data[b.next:b.edge])
	b.edge = int32(n)
	b.next = 0
}

// putByte appends a single byte at the edge cursor.
func (b *Buffer) putByte(c byte) error {
	if err := b.reserve(1); err != nil {
		return err
	}
	b.data[b.edge] = c
	b.edge++
	return nil
}

// putString appends s at the edge cursor.
func (b *Buffer) putString(s string) error { return b.putBlock([]byte(s)) }

// putBlock appends p at the edge cursor.
func (b *Buffer) putBlock(p []byte) error {
	if err := b.reserve(len(p)); err != nil {
		return err
	}
	b.edge += int32(copy(b.data[b.edge:], p))
	return nil
}

// getByte consumes and returns one byte from the service cursor.
func (b *Buffer) getByte() (byte, bool) {
	if b.next >= b.edge {
		return 0, false
	}
	c := b.data[b.next]
	b.next++
	return c, true
}

// getBlock consumes up to len(dst) bytes into dst, returning the count.
func (b *Buffer) getBlock(dst []byte) int {
	n := copy(dst, b.data[b.next:b.edge])
	b.next += int32(n)
	return n
}

// discard advances the service cursor by n without copying, used once a
// parsed section (e.g. a drained chunk header) no longer needs to be kept.
func (b *Buffer) discard(n int) {
	b.next += int32(n)
	if b.next > b.edge {
		b.next = b.edge
	}
}

// fill reads from r into the tail of the buffer (growing first if the tail
// has no room) and returns the number of bytes appended.
func (b *Buffer) fill(r io.Reader) (int, error) {
	if err := b.reserve(1); err != nil {
		return 0, err
	}
	n, err := r.Read(b.data[b.edge:cap(b.data)])
	b.edge += int32(n)
	return n, err
}

// drain writes the unread portion of the buffer to w, advancing next by
// however many bytes were actually written. wouldBlock reports a
// non-fatal short write (the kernel socket buffer is full); callers must
// not discard the undrained remainder in that case.
func (b *Buffer) drain(w io.Writer) (n int, wouldBlock bool, err error) {
	if b.next >= b.edge {
		return 0, false, nil
	}
	n, err = w.Write(b.data[b.next:b.edge])
	b.next += int32(n)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return n, true, nil
		}
		return n, false, err
	}
	return n, false, nil
}

// reset clears the buffer for reuse across requests on the same connection.
func (b *Buffer) reset() {
	b.next, b.edge = 0, 0
}
