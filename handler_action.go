// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// /action/<name> dispatch, grounded on original_source/webcomp.c's
// websDefineAction table (a name-to-callback map consulted by path
// suffix) adapted to the Handler interface.

package goahead

import "strings"

// ActionHandler serves requests under a path prefix (conventionally
// "/action/") by dispatching on the path segment following the prefix
// to a registered callback.
type ActionHandler struct {
	name     string
	Prefix   string
	actions  map[string]func(req *Request) bool
}

// NewActionHandler constructs an ActionHandler matching requests whose
// path starts with prefix.
func NewActionHandler(name, prefix string) *ActionHandler {
	return &ActionHandler{name: name, Prefix: prefix, actions: make(map[string]func(req *Request) bool)}
}

func (h *ActionHandler) Name() string { return h.name }
func (h *ActionHandler) Close() error { return nil }

// Define registers a callback for the action named action (no slashes).
func (h *ActionHandler) Define(action string, fn func(req *Request) bool) {
	h.actions[action] = fn
}

func (h *ActionHandler) Match(req *Request) bool {
	return strings.HasPrefix(req.Path, h.Prefix)
}

func (h *ActionHandler) Serve(req *Request) bool {
	action := strings.TrimPrefix(req.Path, h.Prefix)
	action = strings.TrimPrefix(action, "/")
	fn, ok := h.actions[action]
	if !ok {
		req.errorResponse(errNotFound("no such action"))
		return true
	}
	return fn(req)
}
