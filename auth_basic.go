// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// HTTP Basic authentication (RFC 7617), grounded on original_source/auth.c's
// websBasicLogin/parseBasicDetails/websVerifyPasswordFromFile.

package goahead

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type basicVerifier struct{}

func (basicVerifier) parseDetails(e *Engine, req *Request) bool {
	raw, err := base64.StdEncoding.DecodeString(req.AuthDetails)
	if err != nil {
		return false
	}
	creds := string(raw)
	i := strings.IndexByte(creds, ':')
	if i < 0 {
		req.Username, req.Password = creds, ""
	} else {
		req.Username, req.Password = creds[:i], creds[i+1:]
	}
	req.Encoded = false
	return true
}

func (basicVerifier) verify(e *Engine, req *Request) bool {
	u := e.User(req.Username)
	if u == nil {
		return false
	}
	return verifyPassword(e.realm, u.Username, req.Password, u.Password)
}

func (basicVerifier) askLogin(e *Engine, req *Request) {
	req.pendingHeaders = append(req.pendingHeaders, headerPair{
		headerWWWAuthenticate,
		fmt.Sprintf(`Basic realm="%s"`, e.realm),
	})
}

// verifyPassword compares a cleartext candidate password against a stored
// credential that may be cleartext, an HA1 (MD5(user:realm:password)), or
// a bcrypt hash (component L). HA1 is tried whenever the stored value
// looks like 32 lowercase hex digits, which is what every HA1 goahead
// writes out looks like; this keeps plain short cleartext passwords from
// colliding with the HA1 fast path.
func verifyPassword(realm, username, candidate, stored string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	if looksLikeHA1(stored) {
		return constantTimeEqual(stored, ha1(username, realm, candidate))
	}
	return constantTimeEqual(stored, candidate)
}

func ha1(username, realm, password string) string {
	sum := md5.Sum([]byte(username + ":" + realm + ":" + password))
	return fmt.Sprintf("%x", sum)
}

func looksLikeHA1(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// constantTimeEqual compares two strings in time proportional to their
// length, not to the position of the first mismatch, so password and
// digest-response comparisons don't leak timing information.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
