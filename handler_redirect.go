// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Table-driven redirects: a small ordered list of (prefix, status,
// target) rules, for routes that exist only to forward clients
// elsewhere (moved content, scheme/host canonicalization).

package goahead

import "strings"

type redirectRule struct {
	Prefix string
	Status int
	Target string // target replaces the matched prefix; remainder of Path is appended
}

// RedirectHandler serves every request admitted to its route by
// rewriting Path against the first matching rule.
type RedirectHandler struct {
	name  string
	rules []redirectRule
}

func NewRedirectHandler(name string) *RedirectHandler {
	return &RedirectHandler{name: name}
}

func (h *RedirectHandler) Name() string { return h.name }
func (h *RedirectHandler) Close() error { return nil }
func (h *RedirectHandler) Match(req *Request) bool { return true }

// AddRule appends a rule; status defaults to StatusFound (302) if 0.
func (h *RedirectHandler) AddRule(prefix string, status int, target string) {
	if status == 0 {
		status = StatusFound
	}
	h.rules = append(h.rules, redirectRule{Prefix: prefix, Status: status, Target: target})
}

func (h *RedirectHandler) Serve(req *Request) bool {
	for _, rule := range h.rules {
		if strings.HasPrefix(req.Path, rule.Prefix) {
			dest := rule.Target + strings.TrimPrefix(req.Path, rule.Prefix)
			if req.Query != "" {
				dest += "?" + req.Query
			}
			req.redirect(rule.Status, dest)
			return true
		}
	}
	return false
}
