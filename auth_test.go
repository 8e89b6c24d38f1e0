// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := newEngine("site")
	require.NoError(t, err)
	return e
}

func TestAbilityExpansionThroughRoles(t *testing.T) {
	e := newTestEngine(t)
	e.AddRole("viewer", []string{"read"})
	e.AddRole("editor", []string{"viewer", "write"})
	u := e.AddUser("bob", "pw", []string{"editor"})

	require.True(t, u.HasAbility("read"))
	require.True(t, u.HasAbility("write"))
	require.False(t, u.HasAbility("delete"))
}

func TestAbilityExpansionUnknownTokenIsSelfEdge(t *testing.T) {
	e := newTestEngine(t)
	u := e.AddUser("carl", "pw", []string{"deploy"})
	require.True(t, u.HasAbility("deploy"))
}

func TestAbilityExpansionDepthCap(t *testing.T) {
	e := newTestEngine(t)
	// A cyclic role graph must not hang or overflow the stack.
	e.AddRole("a", []string{"b"})
	e.AddRole("b", []string{"a"})
	u := e.AddUser("dana", "pw", []string{"a"})
	require.NotNil(t, u.Abilities())
}

func TestAddRoleRecomputesExistingUsers(t *testing.T) {
	e := newTestEngine(t)
	u := e.AddUser("erin", "pw", []string{"staff"})
	require.False(t, u.HasAbility("read"))
	e.AddRole("staff", []string{"read"})
	require.True(t, u.HasAbility("read"))
}

func TestVerifyPasswordCleartext(t *testing.T) {
	require.True(t, verifyPassword("site", "alice", "pw", "pw"))
	require.False(t, verifyPassword("site", "alice", "wrong", "pw"))
}

func TestVerifyPasswordHA1(t *testing.T) {
	stored := ha1("alice", "site", "pw")
	require.True(t, verifyPassword("site", "alice", "pw", stored))
	require.False(t, verifyPassword("site", "alice", "wrong", stored))
}

func TestAuthenticateRouteWithNoAuthAlwaysPasses(t *testing.T) {
	e := newTestEngine(t)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	req := &Request{server: srv, route: &Route{AuthType: AuthNone}}
	require.True(t, e.Authenticate(req))
}

func TestAuthenticateBasicChallengeThenSuccess(t *testing.T) {
	e := newTestEngine(t)
	e.AddUser("alice", "pw", nil)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	route := &Route{AuthType: AuthBasic}

	req := &Request{server: srv, route: route, conn: newDiscardConn(t)}
	req.rbuf.initBuffer(0)
	req.wbuf.initBuffer(0)
	ok := e.Authenticate(req)
	require.False(t, ok)
	require.Equal(t, StatusUnauthorized, req.Status)
	require.NotEmpty(t, req.pendingHeaders)

	req2 := &Request{server: srv, route: route, conn: newDiscardConn(t)}
	req2.rbuf.initBuffer(0)
	req2.wbuf.initBuffer(0)
	req2.AuthType = "Basic"
	req2.AuthDetails = base64.StdEncoding.EncodeToString([]byte("alice:pw"))
	ok = e.Authenticate(req2)
	require.True(t, ok)
	require.Equal(t, "alice", req2.Username)
}

func TestAuthenticateIsIdempotentViaSessionCache(t *testing.T) {
	e := newTestEngine(t)
	e.AddUser("alice", "pw", nil)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	route := &Route{AuthType: AuthBasic}

	req := &Request{server: srv, route: route}
	req.rbuf.initBuffer(0)
	req.wbuf.initBuffer(0)
	req.AuthType = "Basic"
	req.AuthDetails = base64.StdEncoding.EncodeToString([]byte("alice:pw"))
	require.True(t, e.Authenticate(req))
	sessionID := req.sessionID

	req2 := &Request{server: srv, route: route, sessionID: sessionID}
	req2.rbuf.initBuffer(0)
	req2.wbuf.initBuffer(0)
	require.True(t, e.Authenticate(req2))
	require.Equal(t, "alice", req2.Username)
}
