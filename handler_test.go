// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestRegistryDefineLookupAndClose(t *testing.T) {
	reg := newRegistry()
	var closed []string
	h1 := &HandlerFunc{name: "one", fn: func(*Request) bool { return true }}
	reg.Define(h1)
	reg.Define(&closingHandler{name: "two", onClose: func() { closed = append(closed, "two") }})
	reg.Define(&closingHandler{name: "three", onClose: func() { closed = append(closed, "three") }})

	require.Same(t, h1, reg.Lookup("one"))
	require.Nil(t, reg.Lookup("missing"))

	require.NoError(t, reg.Close())
	require.Equal(t, []string{"two", "three"}, closed)
}

type closingHandler struct {
	name    string
	onClose func()
}

func (h *closingHandler) Name() string        { return h.name }
func (h *closingHandler) Match(*Request) bool { return true }
func (h *closingHandler) Serve(*Request) bool { return false }
func (h *closingHandler) Close() error        { h.onClose(); return nil }

func TestDispatchFallsThroughToNextHandler(t *testing.T) {
	reg := newRegistry()
	reg.Define(&HandlerFunc{name: "decline", fn: func(*Request) bool { return false }})
	claimed := false
	reg.Define(&HandlerFunc{name: "claim", fn: func(*Request) bool { claimed = true; return true }})

	route := &Route{Handlers: []string{"decline", "claim"}}
	req := &Request{}
	ok := dispatch(route, reg, req)
	require.True(t, ok)
	require.True(t, claimed)
}

func TestDispatchReturnsFalseWhenNoHandlerClaims(t *testing.T) {
	reg := newRegistry()
	reg.Define(&HandlerFunc{name: "decline", fn: func(*Request) bool { return false }})
	route := &Route{Handlers: []string{"decline", "missing"}}
	req := &Request{}
	require.False(t, dispatch(route, reg, req))
}

func TestAuthGateHandlerNeverClaims(t *testing.T) {
	h := NewAuthGateHandler("gate")
	require.Equal(t, "gate", h.Name())
	require.True(t, h.Match(&Request{}))
	require.False(t, h.Serve(&Request{}))
	require.NoError(t, h.Close())
}

func TestRedirectHandlerRewritesPathAndPreservesQuery(t *testing.T) {
	srv := newTestServer(t)
	h := NewRedirectHandler("redirects")
	h.AddRule("/old", StatusMovedPermanently, "/new")
	srv.DefineHandler(h)
	srv.AddRoute(&Route{Prefix: "/old", Handlers: []string{"redirects"}})
	addr := startTestServer(t, srv)

	client := noRedirectClient()
	resp, err := client.Get("http://" + addr + "/old/page?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, StatusMovedPermanently, resp.StatusCode)
	require.Equal(t, "/new/page?x=1", resp.Header.Get("Location"))
}

func TestRedirectHandlerDeclinesWhenNoRuleMatches(t *testing.T) {
	h := NewRedirectHandler("redirects")
	h.AddRule("/old", 0, "/new")
	req := &Request{Path: "/elsewhere"}
	require.False(t, h.Serve(req))
}

func TestFileHandlerHeadOmitsBody(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0o644))

	srv := newTestServer(t)
	fh := NewFileHandler("files", dir)
	srv.DefineHandler(fh)
	srv.AddRoute(&Route{Prefix: "/", Handlers: []string{"files"}})
	addr := startTestServer(t, srv)

	resp, err := http.Head("http://" + addr + "/hello.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "11", resp.Header.Get("Content-Length"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestFileHandlerCompressedResponseIsChunkFramedAndDecodes(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("goahead-compression-test-data ", 100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(payload), 0o644))

	srv := newTestServer(t)
	fh := NewFileHandler("files", dir)
	fh.Compressor = &Compressor{}
	srv.DefineHandler(fh)
	srv.AddRoute(&Route{Prefix: "/", Handlers: []string{"files"}})
	addr := startTestServer(t, srv)

	req, err := http.NewRequest("GET", "http://"+addr+"/big.txt", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	require.Empty(t, resp.Header.Get("Content-Length"))

	gr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gr)
	require.NoError(t, err)
	require.Equal(t, payload, string(decoded))
}
