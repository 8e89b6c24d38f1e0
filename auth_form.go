// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Form-based login, grounded on original_source/form.c's in-process
// /goform handler pattern, adapted to the action-handler model (§4.F) as
// /action/login and /action/logout.

package goahead

// formVerifier is a pass-through: the credential extraction for form auth
// happens once, inside the login action (loginAction below), not on every
// request. A request only reaches formVerifier.verify via Engine.Authenticate
// when it already carries req.Username/req.Password set by the login
// action in the same dispatch.
type formVerifier struct{}

func (formVerifier) parseDetails(e *Engine, req *Request) bool {
	// Credentials were already placed on req by loginAction; nothing to
	// parse from the wire here.
	return true
}

func (formVerifier) verify(e *Engine, req *Request) bool {
	u := e.User(req.Username)
	if u == nil {
		return false
	}
	return verifyPassword(e.realm, u.Username, req.Password, u.Password)
}

func (formVerifier) askLogin(e *Engine, req *Request) {
	loginPage := e.loginPage
	if sess := req.existingSession(); sess != nil {
		if ref := req.Referrer; ref != "" {
			sess.Set("referrer", ref)
		}
	}
	req.redirect(StatusFound, loginPage)
}

// loginAction implements POST /action/login: reads username/password from
// the decoded form body, authenticates, and on success caches the
// username in the session and redirects to the page the user originally
// wanted (stashed in the "referrer" session variable) or to "/".
func loginAction(req *Request) bool {
	username := req.FormValue("username")
	password := req.FormValue("password")
	req.Username, req.Password = username, password

	u := req.server.auth.User(username)
	if u == nil || !verifyPassword(req.server.auth.realm, username, password, u.Password) {
		req.errorResponse(errAuthRequired("invalid username or password"))
		return true
	}

	sess := req.getOrCreateSession()
	sess.Set(WEBS_SESSION_USERNAME, username)

	dest := "/"
	if ref := sess.Get("referrer"); ref != "" {
		dest = ref
		sess.Remove("referrer")
	}
	req.redirect(StatusFound, dest)
	return true
}

// logoutAction implements POST/GET /action/logout: clears the cached
// identity from the session and redirects to the login page.
func logoutAction(req *Request) bool {
	if sess := req.existingSession(); sess != nil {
		sess.Remove(WEBS_SESSION_USERNAME)
	}
	req.redirect(StatusFound, req.server.auth.loginPage)
	return true
}
