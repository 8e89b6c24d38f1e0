// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Auth engine (component D): user/role CRUD, ability expansion, and the
// authentication lifecycle that ties a Route's AuthType to one of the
// three verifiers in auth_basic.go/auth_digest.go/auth_form.go.

package goahead

import (
	"strings"
	"sync"
	"time"
)

// maxRoleDepth bounds role->role expansion recursion.
const maxRoleDepth = 20

// Role is a named bundle of abilities; it may nest other roles by name.
type Role struct {
	Name      string
	Abilities []string // may name other roles, expanded recursively
}

// User is a username/password/role record with a precomputed ability set.
type User struct {
	Username string
	// Password holds either cleartext, a precomputed HA1
	// (MD5(user:realm:password)), or a bcrypt hash (prefixed "$2") — see
	// SPEC_FULL.md component L. Digest auth requires HA1-or-cleartext.
	Password string
	Roles    []string // role names and/or bare ability tokens

	abilities map[string]bool // computed, recursion-expanded
}

// Abilities returns the computed, expanded ability set for this user.
func (u *User) Abilities() map[string]bool { return u.abilities }

// HasAbility reports whether the user's computed ability set contains a.
func (u *User) HasAbility(a string) bool { return u.abilities[a] }

// Engine owns the user and role tables and runs the authentication
// lifecycle, as a single value a Server constructs and owns in place of
// file-scope singletons.
type Engine struct {
	mu    sync.RWMutex
	users map[string]*User
	roles map[string]*Role

	realm        string
	secret       []byte // server secret for digest nonces, from crypto/rand
	autoLogin    bool   // development mode: skip all authentication
	loginPage    string // form auth: where to send unauthenticated users
	digestLife   time.Duration
	nonceCounter int64
}

// newEngine constructs an Engine with a fresh cryptographically random
// digest secret — never a time-seeded PRNG.
func newEngine(realm string) (*Engine, error) {
	secret, err := randomSecret(32)
	if err != nil {
		return nil, err
	}
	return &Engine{
		users:      make(map[string]*User),
		roles:      make(map[string]*Role),
		realm:      realm,
		secret:     secret,
		loginPage:  "/login.html",
		digestLife: digestNonceLifetime,
	}, nil
}

// AddUser registers or replaces a user, computing its ability set.
// Digest-auth users must store an HA1 or cleartext password; bcrypt
// hashes are one-way and cannot serve digest's HA1 requirement.
func (e *Engine) AddUser(username, password string, roles []string) *User {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := &User{Username: username, Password: password, Roles: roles}
	e.users[username] = u
	e.computeUserAbilitiesLocked(u)
	return u
}

// AddRole registers or replaces a role. Abilities may themselves name
// other roles; this is resolved lazily during ability expansion.
func (e *Engine) AddRole(name string, abilities []string) *Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := &Role{Name: name, Abilities: abilities}
	e.roles[name] = r
	// Changing a role's abilities can affect any user that references it,
	// so recompute every user's abilities.
	for _, u := range e.users {
		e.computeUserAbilitiesLocked(u)
	}
	return r
}

// SetUserRoles replaces a user's role list and recomputes its abilities.
func (e *Engine) SetUserRoles(username string, roles []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.users[username]
	if !ok {
		return false
	}
	u.Roles = roles
	e.computeUserAbilitiesLocked(u)
	return true
}

// User returns a copy-free lookup of a user record, or nil.
func (e *Engine) User(username string) *User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.users[username]
}

// RemoveUser deletes a user.
func (e *Engine) RemoveUser(username string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.users, username)
}

// RemoveRole deletes a role.
func (e *Engine) RemoveRole(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.roles, name)
}

// Users and Roles return snapshots for config write-back.
func (e *Engine) Users() []*User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*User, 0, len(e.users))
	for _, u := range e.users {
		out = append(out, u)
	}
	return out
}
func (e *Engine) Roles() []*Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Role, 0, len(e.roles))
	for _, r := range e.roles {
		out = append(out, r)
	}
	return out
}

// computeUserAbilitiesLocked expands a user's role list into its ability
// set. Each token is tokenized on whitespace/commas; a token that names a
// role expands recursively (depth-capped), otherwise it is treated as a
// bare ability. Must be called with e.mu held.
func (e *Engine) computeUserAbilitiesLocked(u *User) {
	abilities := make(map[string]bool)
	for _, roleField := range u.Roles {
		for _, token := range tokenizeRoles(roleField) {
			e.expandAbilityLocked(token, abilities, 0)
		}
	}
	u.abilities = abilities
}

func (e *Engine) expandAbilityLocked(token string, out map[string]bool, depth int) {
	if depth >= maxRoleDepth {
		// Depth cap breached: not a fatal condition, the partial expansion
		// already collected stands.
		return
	}
	if role, ok := e.roles[token]; ok {
		for _, ability := range role.Abilities {
			for _, sub := range tokenizeRoles(ability) {
				e.expandAbilityLocked(sub, out, depth+1)
			}
		}
		return
	}
	// Not a known role name: treat the token itself as an ability
	// (a self-edge for unknown tokens).
	out[token] = true
}

func tokenizeRoles(field string) []string {
	return strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// verifier is the per-protocol credential handler, modeled as an
// interface rather than three raw function pointers.
type verifier interface {
	// parseDetails extracts credentials from the raw Authorization header
	// (or, for form auth, the request body) into req's auth fields.
	// Returns false on malformed input (caller responds 400).
	parseDetails(e *Engine, req *Request) bool
	// verify checks the parsed credentials against the Engine's user
	// table. Returns false on bad/unknown credentials (caller responds
	// 401 + askLogin).
	verify(e *Engine, req *Request) bool
	// askLogin writes the challenge (WWW-Authenticate header, or a
	// redirect to the login page) onto req's pending response.
	askLogin(e *Engine, req *Request)
}

func (e *Engine) verifierFor(t AuthType) verifier {
	switch t {
	case AuthBasic:
		return basicVerifier{}
	case AuthDigest:
		return digestVerifier{}
	case AuthForm:
		return formVerifier{}
	default:
		return nil
	}
}

// Authenticate runs the authentication lifecycle for a route that
// requires credentials. It is idempotent: calling it twice on the same
// Request yields the same decision and does not mutate the session
// beyond the first call, because a cached session hit short-circuits
// before any verifier runs.
func (e *Engine) Authenticate(req *Request) bool {
	route := req.route
	if route == nil || route.AuthType == AuthNone || e.autoLogin {
		return true
	}

	if req.sessionID != "" {
		if username := req.sessionVarNoCreate(WEBS_SESSION_USERNAME); username != "" {
			req.Username = username
			return true
		}
	}

	v := e.verifierFor(route.AuthType)
	if v == nil {
		req.errorResponse(errAuthBadProtocol("no verifier configured for route auth type"))
		return false
	}

	if req.AuthType != "" && !strings.EqualFold(req.AuthType, route.AuthType.String()) {
		req.errorResponse(errAuthBadProtocol("wrong authentication protocol type"))
		return false
	}

	if req.AuthDetails != "" || route.AuthType == AuthForm {
		if !v.parseDetails(e, req) {
			req.errorResponse(errAuthBadProtocol("malformed credentials"))
			return false
		}
	}

	if req.Username == "" {
		v.askLogin(e, req)
		// Basic/digest askLogin only stages a WWW-Authenticate header, so
		// errorResponse still needs to render the 401 body; form askLogin
		// finalizes a redirect itself (req.redirect, which calls Done), and
		// must not be followed by a second response on top of it.
		if req.state != stateComplete {
			req.errorResponse(errAuthRequired("authentication required"))
		}
		return false
	}

	if !v.verify(e, req) {
		v.askLogin(e, req)
		if req.state != stateComplete {
			req.errorResponse(errAuthRequired("invalid username or password"))
		}
		return false
	}

	e.cacheAuthenticated(req)
	return true
}

// cacheAuthenticated stores the authenticated username in the request's
// session so subsequent requests on the same cookie skip re-verification.
func (e *Engine) cacheAuthenticated(req *Request) {
	sess := req.getOrCreateSession()
	sess.Set(WEBS_SESSION_USERNAME, req.Username)
}

// WEBS_SESSION_USERNAME names the session variable the original GoAhead
// source (auth.c) uses to cache the authenticated principal; kept as a
// named constant (not a magic string) across auth.go/auth_form.go.
const WEBS_SESSION_USERNAME = "_goahead_username_"
