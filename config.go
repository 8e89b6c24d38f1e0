// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Route/auth config file codec (component J). A line-oriented directive
// format: `directive key=value key=value ...`, `#`-prefixed comments.
// No third-party library in the example pack implements this bespoke
// shape (it's neither TOML/YAML/JSON nor a recognized .ini dialect), so
// this is a hand-rolled scanner/writer — see DESIGN.md for the
// justification this module's convention requires for any
// standard-library-only component.

package goahead

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadConfig reads directives from path and applies them to s: user,
// role, and route lines populate the auth engine and route table in the
// order they appear (routes keep that order as their insertion order
// for tie-breaking, per the route table's invariant).
func (s *Server) LoadConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errInternal("failed to open config file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.applyDirective(line); err != nil {
			return errProtocol(fmt.Sprintf("config %s:%d: %v", path, lineNo, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return errInternal("failed reading config file", err)
	}
	return nil
}

func (s *Server) applyDirective(line string) error {
	fields := splitDirectiveFields(line)
	if len(fields) == 0 {
		return nil
	}
	kind := fields[0]
	kv := parseKeyValues(fields[1:])

	switch kind {
	case "user":
		roles := splitCSV(kv["roles"])
		s.auth.AddUser(kv["name"], kv["password"], roles)
	case "role":
		abilities := splitCSV(kv["abilities"])
		s.auth.AddRole(kv["name"], abilities)
	case "route":
		route, err := routeFromDirective(kv)
		if err != nil {
			return err
		}
		s.routes.Add(route)
	default:
		return fmt.Errorf("unknown directive %q", kind)
	}
	return nil
}

func routeFromDirective(kv map[string]string) (*Route, error) {
	authType, ok := parseAuthType(kv["auth"])
	if !ok {
		return nil, fmt.Errorf("unknown auth type %q", kv["auth"])
	}
	r := &Route{
		Prefix:   kv["prefix"],
		AuthType: authType,
	}
	if methods := splitCSV(kv["methods"]); len(methods) > 0 {
		r.Methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			r.Methods[strings.ToUpper(m)] = true
		}
	}
	if exts := splitCSV(kv["extensions"]); len(exts) > 0 {
		r.Extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			r.Extensions[e] = true
		}
	}
	r.Abilities = splitCSV(kv["abilities"])
	if handler := kv["handler"]; handler != "" {
		r.Handlers = []string{handler}
	}
	return r, nil
}

// SaveConfig writes the server's current user/role/route tables to path
// in the same directive shape LoadConfig reads, via temp-file+rename for
// atomic replace.
func (s *Server) SaveConfig(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".goahead-config-*")
	if err != nil {
		return errInternal("failed to create temp config file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	for _, r := range s.auth.Roles() {
		fmt.Fprintf(w, "role name=%s abilities=%s\n", r.Name, strings.Join(r.Abilities, ","))
	}
	for _, u := range s.auth.Users() {
		fmt.Fprintf(w, "user name=%s password=%s roles=%s\n", u.Username, u.Password, strings.Join(u.Roles, ","))
	}
	for _, route := range s.routes.Routes() {
		writeRouteDirective(w, route)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return errInternal("failed writing config file", err)
	}
	if err := tmp.Close(); err != nil {
		return errInternal("failed closing temp config file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errInternal("failed to replace config file", err)
	}
	return nil
}

func writeRouteDirective(w *bufio.Writer, r *Route) {
	fmt.Fprintf(w, "route prefix=%s methods=%s extensions=%s abilities=%s auth=%s",
		r.Prefix, joinMapKeys(r.Methods), joinMapKeys(r.Extensions), strings.Join(r.Abilities, ","), r.AuthType.String())
	if len(r.Handlers) > 0 {
		fmt.Fprintf(w, " handler=%s", r.Handlers[0])
	}
	w.WriteString("\n")
}

func joinMapKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return strings.Join(keys, ",")
}

// splitDirectiveFields splits on spaces (not tabs) while keeping quoted
// values (key="a b") intact.
func splitDirectiveFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

func parseKeyValues(fields []string) map[string]string {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			continue
		}
		kv[f[:eq]] = f[eq+1:]
	}
	return kv
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
