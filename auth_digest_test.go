// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildNonceAt(e *Engine, when time.Time) string {
	raw := fmt.Sprintf("%x:%s:%x:%x", e.secret, e.realm, when.Unix(), 1)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

func TestCalcDigestResponseMatchesRFC2617(t *testing.T) {
	username, realm, password := "alice", "site", "pw"
	nonce, nc, cnonce, qop := "abc123", "00000001", "xyz", "auth"
	method, uri := "GET", "/private/index.html"

	ha1value := ha1(username, realm, password)
	ha2sum := md5Hex(method + ":" + uri)
	want := md5Hex(ha1value + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2sum)

	got := calcDigestResponse(username, realm, password, method, uri, nonce, nc, cnonce, qop)
	require.Equal(t, want, got)
}

func TestCalcDigestResponseAcceptsPrecomputedHA1(t *testing.T) {
	stored := ha1("alice", "site", "pw")
	a := calcDigestResponse("alice", "site", stored, "GET", "/x", "n", "1", "c", "auth")
	b := calcDigestResponse("alice", "site", "pw", "GET", "/x", "n", "1", "c", "auth")
	require.Equal(t, a, b)
}

func TestNonceRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	nonce := e.createNonce()
	secretHex, realm, when, ok := e.parseNonce(nonce)
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("%x", e.secret), secretHex)
	require.Equal(t, e.realm, realm)
	require.WithinDuration(t, time.Now(), time.Unix(when, 0), 2*time.Second)
}

func TestDigestAuthenticateSuccess(t *testing.T) {
	e := newTestEngine(t)
	e.AddUser("alice", "pw", nil)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	route := &Route{AuthType: AuthDigest}

	nonce := e.createNonce()
	resp := calcDigestResponse("alice", "site", "pw", "GET", "/secret", nonce, "00000001", "cn1", "auth")
	details := fmt.Sprintf(
		`username="alice", realm="site", nonce="%s", uri="/secret", response="%s", qop=auth, nc=00000001, cnonce="cn1"`,
		nonce, resp,
	)

	req := &Request{server: srv, route: route, Method: "GET", DigestURI: "/secret", conn: newDiscardConn(t)}
	req.rbuf.initBuffer(0)
	req.wbuf.initBuffer(0)
	req.AuthType = "Digest"
	req.AuthDetails = details

	require.True(t, e.Authenticate(req))
	require.Equal(t, "alice", req.Username)
}

func TestDigestAuthenticateRejectsStaleNonceAndMarksStale(t *testing.T) {
	e := newTestEngine(t)
	e.AddUser("alice", "pw", nil)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	route := &Route{AuthType: AuthDigest}

	// Mint a nonce as if it had been issued over five minutes ago: the
	// replay-rejection scenario (issue at T0, succeed, replay at
	// T0+301s should fail with stale=TRUE).
	staleNonce := buildNonceAt(e, time.Now().Add(-301*time.Second))
	resp := calcDigestResponse("alice", "site", "pw", "GET", "/secret", staleNonce, "00000001", "cn1", "auth")
	details := fmt.Sprintf(
		`username="alice", realm="site", nonce="%s", uri="/secret", response="%s", qop=auth, nc=00000001, cnonce="cn1"`,
		staleNonce, resp,
	)

	req := &Request{server: srv, route: route, Method: "GET", DigestURI: "/secret", conn: newDiscardConn(t)}
	req.rbuf.initBuffer(0)
	req.wbuf.initBuffer(0)
	req.AuthType = "Digest"
	req.AuthDetails = details

	ok := e.Authenticate(req)
	require.False(t, ok)
	require.Equal(t, StatusUnauthorized, req.Status)
	challenge := findHeader(req.pendingHeaders, headerWWWAuthenticate)
	require.NotEmpty(t, challenge)
	require.Contains(t, challenge, `stale="TRUE"`)
}

func findHeader(headers []headerPair, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func TestDigestAuthenticateRejectsForgedSecret(t *testing.T) {
	e := newTestEngine(t)
	e.AddUser("alice", "pw", nil)
	srv := &Server{auth: e, sessions: newSessionStore(0), logger: noopLogger{}}
	route := &Route{AuthType: AuthDigest}

	forged := fmt.Sprintf("%x:%s:%x:%x", []byte("not-the-real-secret-32-bytes!!!!"), e.realm, time.Now().Unix(), 1)
	nonce := base64.StdEncoding.EncodeToString([]byte(forged))
	resp := calcDigestResponse("alice", "site", "pw", "GET", "/secret", nonce, "00000001", "cn1", "auth")
	details := fmt.Sprintf(
		`username="alice", realm="site", nonce="%s", uri="/secret", response="%s", qop=auth, nc=00000001, cnonce="cn1"`,
		nonce, resp,
	)

	req := &Request{server: srv, route: route, Method: "GET", DigestURI: "/secret", conn: newDiscardConn(t)}
	req.rbuf.initBuffer(0)
	req.wbuf.initBuffer(0)
	req.AuthType = "Digest"
	req.AuthDetails = details

	require.False(t, e.Authenticate(req))
}

func TestParseDigestParamsHandlesQuotedAndBareValues(t *testing.T) {
	params := parseDigestParams(`username="alice", realm="site", nc=00000001, qop=auth, response="abc\"def"`)
	require.Equal(t, "alice", params["username"])
	require.Equal(t, "site", params["realm"])
	require.Equal(t, "00000001", params["nc"])
	require.Equal(t, "auth", params["qop"])
	require.Equal(t, `abc"def`, params["response"])
}
