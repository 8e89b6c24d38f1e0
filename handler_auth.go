// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Gating-only handler: always returns unclaimed. By the time any
// handler in a route's chain runs, Server.serveOneRequest has already
// called Engine.Authenticate for that route, so this handler exists
// only for routes that want the authentication side effect (session
// caching) without otherwise restricting which later handler answers
// the request — e.g. a route that authenticates but then falls through
// to a shared static file handler.

package goahead

// AuthGateHandler never claims a request; it exists purely to occupy a
// slot in a route's Handlers list ahead of the handler that will
// actually answer, documenting that the route requires authentication
// even though the real work is done elsewhere in the chain.
type AuthGateHandler struct {
	name string
}

func NewAuthGateHandler(name string) *AuthGateHandler { return &AuthGateHandler{name: name} }

func (h *AuthGateHandler) Name() string            { return h.name }
func (h *AuthGateHandler) Match(req *Request) bool { return true }
func (h *AuthGateHandler) Serve(req *Request) bool { return false }
func (h *AuthGateHandler) Close() error            { return nil }
