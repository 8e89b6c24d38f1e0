// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package goahead

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitDirectiveFieldsHonorsQuotes(t *testing.T) {
	fields := splitDirectiveFields(`route prefix=/a b methods=GET extensions="jpg,png"`)
	require.Equal(t, []string{"route", "prefix=/a", "b", "methods=GET", `extensions=jpg,png`}, fields)
}

func TestParseKeyValuesIgnoresFieldsWithoutEquals(t *testing.T) {
	kv := parseKeyValues([]string{"name=alice", "bogus", "roles=admin,staff"})
	require.Equal(t, "alice", kv["name"])
	require.Equal(t, "admin,staff", kv["roles"])
	require.NotContains(t, kv, "bogus")
}

func TestSplitCSVDropsEmptyEntries(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitCSV("a,,b,"))
	require.Nil(t, splitCSV(""))
}

func TestLoadConfigAppliesUserRoleAndRouteDirectives(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "goahead.conf")
	contents := "" +
		"# a comment\n" +
		"\n" +
		"role name=staff abilities=read,write\n" +
		"user name=alice password=pw roles=staff\n" +
		"route prefix=/admin methods=GET,POST extensions=html abilities=write auth=basic\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	require.NoError(t, srv.LoadConfig(path))

	u := srv.auth.User("alice")
	require.NotNil(t, u)
	require.True(t, u.HasAbility("read"))
	require.True(t, u.HasAbility("write"))

	r := srv.routes.Select("POST", "/admin/report.html")
	require.NotNil(t, r)
	require.Equal(t, AuthBasic, r.AuthType)
	require.True(t, r.satisfiedBy(map[string]bool{"write": true}))
}

func TestLoadConfigRejectsUnknownAuthType(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("route prefix=/ auth=bearer\n"), 0o644))
	err := srv.LoadConfig(path)
	require.Error(t, err)
}

func TestSaveConfigThenLoadConfigRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	srv.auth.AddRole("staff", []string{"read", "write"})
	srv.auth.AddUser("alice", "pw", []string{"staff"})
	srv.routes.Add(&Route{
		Prefix:     "/admin",
		Methods:    map[string]bool{"GET": true},
		Extensions: map[string]bool{"html": true},
		Abilities:  []string{"write"},
		AuthType:   AuthDigest,
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.conf")
	require.NoError(t, srv.SaveConfig(path))

	loaded := newTestServer(t)
	require.NoError(t, loaded.LoadConfig(path))

	u := loaded.auth.User("alice")
	require.NotNil(t, u)
	require.True(t, u.HasAbility("read"))
	require.True(t, u.HasAbility("write"))

	r := loaded.routes.Select("GET", "/admin/index.html")
	require.NotNil(t, r)
	require.Equal(t, AuthDigest, r.AuthType)
}
