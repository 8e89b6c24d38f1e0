// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Route table (component C). Ordered list of route rules; longest-prefix
// match with method/extension filters, deferring ability checks to the
// auth engine (component D) once the candidate route is selected.

package goahead

import (
	"sort"
	"strings"
)

// AuthType names which credential protocol a route expects.
type AuthType int8

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthDigest
	AuthForm
)

func (t AuthType) String() string {
	switch t {
	case AuthBasic:
		return "basic"
	case AuthDigest:
		return "digest"
	case AuthForm:
		return "form"
	default:
		return "none"
	}
}

func parseAuthType(s string) (AuthType, bool) {
	switch strings.ToLower(s) {
	case "", "none":
		return AuthNone, true
	case "basic":
		return AuthBasic, true
	case "digest":
		return AuthDigest, true
	case "form":
		return AuthForm, true
	default:
		return AuthNone, false
	}
}

// Route is immutable once installed into a Table.
type Route struct {
	Prefix     string
	Methods    map[string]bool // nil means all methods admitted
	Extensions map[string]bool // nil means all extensions admitted
	Abilities  []string        // required abilities, checked post-authentication
	AuthType   AuthType
	Handlers   []string // names, matched against Handler.Name() in order

	insertion int // tie-break order for equal-length prefixes
}

// admitsMethod reports whether method is allowed on this route.
func (r *Route) admitsMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	return r.Methods[strings.ToUpper(method)]
}

// admitsExtension reports whether the file extension of path is allowed.
func (r *Route) admitsExtension(path string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := ""
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i+1:]
	}
	return r.Extensions[ext]
}

// satisfiedBy reports whether abilities as a set satisfies every ability
// this route requires.
func (r *Route) satisfiedBy(abilities map[string]bool) bool {
	for _, want := range r.Abilities {
		if !abilities[want] {
			return false
		}
	}
	return true
}

// Table is the ordered route table (component C). The zero value is ready
// to use.
type Table struct {
	routes []*Route
	nextID int
}

// Add installs a route, keeping the table sorted by descending prefix
// length with ties broken by insertion order.
func (t *Table) Add(r *Route) {
	r.insertion = t.nextID
	t.nextID++
	t.routes = append(t.routes, r)
	sort.SliceStable(t.routes, func(i, j int) bool {
		li, lj := len(t.routes[i].Prefix), len(t.routes[j].Prefix)
		if li != lj {
			return li > lj
		}
		return t.routes[i].insertion < t.routes[j].insertion
	})
}

// Remove deletes every route with the given prefix.
func (t *Table) Remove(prefix string) {
	kept := t.routes[:0]
	for _, r := range t.routes {
		if r.Prefix != prefix {
			kept = append(kept, r)
		}
	}
	t.routes = kept
}

// Select returns the first admissible route whose prefix matches path,
// scanning in table order (already sorted by descending prefix length),
// or nil if none admit the request. Ability checks are deferred to the
// auth engine once a candidate is returned.
func (t *Table) Select(method, path string) *Route {
	for _, r := range t.routes {
		if !strings.HasPrefix(path, r.Prefix) {
			continue
		}
		if !r.admitsMethod(method) {
			continue
		}
		if !r.admitsExtension(path) {
			continue
		}
		return r
	}
	return nil
}

// Routes returns a snapshot of the table in match order, for config
// write-back.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}
