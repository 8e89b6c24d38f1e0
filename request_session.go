// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Per-request session lookup/creation and form-body decoding. Kept apart
// from request.go because both concerns are self-contained and each
// maps to a single teacher-style file per concern.

package goahead

import (
	"net/url"
	"strings"
)

// existingSession returns the session already bound to this request's
// cookie, without creating one. Returns nil if there is no cookie or it
// names an expired/unknown session.
func (req *Request) existingSession() *Session {
	if req.session != nil {
		return req.session
	}
	if req.sessionID == "" {
		return nil
	}
	sess, ok := req.server.sessions.get(req.sessionID)
	if !ok {
		return nil
	}
	req.session = sess
	return sess
}

// getOrCreateSession returns the bound session, minting a new one (and
// queuing its Set-Cookie) if none exists yet.
func (req *Request) getOrCreateSession() *Session {
	if sess := req.existingSession(); sess != nil {
		return sess
	}
	sess, err := req.server.sessions.create()
	if err != nil {
		// Session minting failure (crypto/rand exhaustion) degrades to a
		// sessionless request rather than failing the whole response.
		req.server.logger.Errorf("session creation failed: %v", err)
		return &Session{}
	}
	req.session = sess
	req.sessionID = sess.ID()
	req.AddHeader(headerSetCookie, sessionCookieName+"="+sess.ID()+"; Path=/; HttpOnly")
	return sess
}

// sessionVarNoCreate reads a session variable without minting a session
// if one doesn't already exist for this request — used by the auth
// engine's cache check, which must not create sessions for requests that
// go on to fail authentication.
func (req *Request) sessionVarNoCreate(name string) string {
	sess := req.existingSession()
	if sess == nil {
		return ""
	}
	return sess.Get(name)
}

// SessionVar and SetSessionVar are the host-visible accessors for
// per-session state (component B), minting a session on first write.
func (req *Request) SessionVar(name string) string {
	return req.sessionVarNoCreate(name)
}
func (req *Request) SetSessionVar(name, value string) {
	req.getOrCreateSession().Set(name, value)
}

// ensureFormParsed decodes application/x-www-form-urlencoded body
// content (and, for GET/HEAD, the query string) into req.formValues,
// exactly once per request.
func (req *Request) ensureFormParsed() {
	if req.formParsed {
		return
	}
	req.formParsed = true
	req.formValues = make(map[string]string)

	if req.Query != "" {
		if values, err := url.ParseQuery(req.Query); err == nil {
			for k, v := range values {
				if len(v) > 0 {
					req.formValues[k] = v[0]
				}
			}
		}
	}

	ct := req.Header(headerContentType)
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") && len(req.bodyBuf) > 0 {
		if values, err := url.ParseQuery(string(req.bodyBuf)); err == nil {
			for k, v := range values {
				if len(v) > 0 {
					req.formValues[k] = v[0]
				}
			}
		}
	}
}

// FormValue returns a decoded form/query parameter by name.
func (req *Request) FormValue(name string) string {
	req.ensureFormParsed()
	return req.formValues[name]
}
