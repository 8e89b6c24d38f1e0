// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPutGet(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	require.NoError(t, b.putString("hello "))
	require.NoError(t, b.putString("world"))
	require.Equal(t, "hello world", string(b.Bytes()))

	c, ok := b.getByte()
	require.True(t, ok)
	require.Equal(t, byte('h'), c)

	dst := make([]byte, 4)
	n := b.getBlock(dst)
	require.Equal(t, 4, n)
	require.Equal(t, "ello", string(dst))
	require.Equal(t, " world", string(b.Bytes()))
}

func TestBufferGrowsPastStock(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	big := strings.Repeat("x", sizeStock*3)
	require.NoError(t, b.putString(big))
	require.Equal(t, big, string(b.Bytes()))
	require.True(t, b.Cap() > sizeStock)
}

func TestBufferReserveRespectsMaxSize(t *testing.T) {
	var b Buffer
	b.initBuffer(8)
	defer b.free()

	require.NoError(t, b.putString("12345678"))
	err := b.putString("9")
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestBufferCompactReclaimsServicedSpace(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	require.NoError(t, b.putString("abcdef"))
	dst := make([]byte, 3)
	b.getBlock(dst)
	require.Equal(t, "abc", string(dst))
	before := b.Cap()
	b.compact()
	require.Equal(t, before, b.Cap())
	require.Equal(t, "def", string(b.Bytes()))
	require.Equal(t, int32(0), b.next)
}

func TestBufferFillReadsFromReader(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	r := bytes.NewReader([]byte("payload"))
	n, err := b.fill(r)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, "payload", string(b.Bytes()))
}

func TestBufferDrainWritesToWriter(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	require.NoError(t, b.putString("response body"))
	var out bytes.Buffer
	n, wouldBlock, err := b.drain(&out)
	require.NoError(t, err)
	require.False(t, wouldBlock)
	require.Equal(t, 13, n)
	require.Equal(t, "response body", out.String())
	require.Equal(t, 0, b.Len())
}

func TestBufferDiscard(t *testing.T) {
	var b Buffer
	b.initBuffer(0)
	defer b.free()

	require.NoError(t, b.putString("0123456789"))
	b.discard(4)
	require.Equal(t, "456789", string(b.Bytes()))
	b.discard(1000)
	require.Equal(t, 0, b.Len())
}
