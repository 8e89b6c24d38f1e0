// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateAndGet(t *testing.T) {
	st := newSessionStore(time.Minute)
	defer st.Close()

	sess, err := st.create()
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID())

	sess.Set("username", "alice")
	got, ok := st.get(sess.ID())
	require.True(t, ok)
	require.Equal(t, "alice", got.Get("username"))
}

func TestSessionStoreExpiry(t *testing.T) {
	st := newSessionStore(10 * time.Millisecond)
	defer st.Close()

	sess, err := st.create()
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, ok := st.get(sess.ID())
	require.False(t, ok)
}

func TestSessionStoreRemove(t *testing.T) {
	st := newSessionStore(time.Minute)
	defer st.Close()

	sess, err := st.create()
	require.NoError(t, err)
	st.remove(sess.ID())
	_, ok := st.get(sess.ID())
	require.False(t, ok)
}

func TestSessionIDsAreUnpredictable(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newSessionID()
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestSessionVars(t *testing.T) {
	sess := &Session{vars: make(map[string]string)}
	require.Equal(t, "", sess.Get("missing"))
	sess.Set("k", "v")
	require.Equal(t, "v", sess.Get("k"))
	sess.Remove("k")
	require.Equal(t, "", sess.Get("k"))
}
