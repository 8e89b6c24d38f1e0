// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// HTTP Digest authentication per RFC 2617 §3.2.2.1, grounded on
// original_source/auth.c (digestLogin/parseDigestDetails/createDigestNonce/
// parseDigestNonce/calcDigest). That reference implementation's nonce
// validation compares the embedded secret against itself, which always
// succeeds; here the nonce-embedded secret is compared against the
// Engine's own secret instead, so a forged or foreign-realm nonce is
// correctly rejected.

package goahead

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// digestNonceLifetime is the maximum age before a nonce is considered
// stale; a request using an older nonce is rejected with stale=TRUE so
// the client can retry with a fresh one without re-prompting the user.
const digestNonceLifetime = 5 * time.Minute

func randomSecret(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, errInternal("failed to generate server secret", err)
	}
	return buf, nil
}

type digestVerifier struct{}

// createNonce builds base64(secret:realm:unix-time:counter). counter
// distinguishes nonces minted within the same second; it need not be
// globally unique, only present.
func (e *Engine) createNonce() string {
	counter := atomic.AddInt64(&e.nonceCounter, 1)
	raw := fmt.Sprintf("%x:%s:%x:%x", e.secret, e.realm, time.Now().Unix(), counter)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// parseNonce recovers the embedded secret, realm, and mint time.
func (e *Engine) parseNonce(nonce string) (secretHex, realm string, when int64, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", "", 0, false
	}
	parts := strings.SplitN(string(raw), ":", 4)
	if len(parts) < 3 {
		return "", "", 0, false
	}
	when, err = strconv.ParseInt(parts[2], 16, 64)
	if err != nil {
		return "", "", 0, false
	}
	return parts[0], parts[1], when, true
}

// parseDetails only tokenizes the Authorization header into req's fields
// and rejects syntactically malformed credentials (missing fields a
// well-formed digest response always carries). Anything that depends on
// the Engine's own state — whether the nonce's embedded secret/realm
// match, whether it's stale, whether the password actually matches — is
// a verify()-time decision, so that a bad nonce or bad credentials take
// the normal 401+askLogin path (with stale=TRUE when applicable) instead
// of a bare 400.
func (digestVerifier) parseDetails(e *Engine, req *Request) bool {
	params := parseDigestParams(req.AuthDetails)
	req.Username = params["username"]
	req.Realm = params["realm"]
	req.Nonce = params["nonce"]
	req.NC = params["nc"]
	req.CNonce = params["cnonce"]
	req.Qop = params["qop"]
	req.Opaque = params["opaque"]
	req.DigestURI = params["uri"]
	if resp, ok := params["response"]; ok {
		req.Password = resp
		req.Encoded = true
	}

	if req.Username == "" || req.Realm == "" || req.Nonce == "" || req.Password == "" {
		return false
	}
	if req.Qop != "" && (req.CNonce == "" || req.NC == "") {
		return false
	}
	return true
}

func (digestVerifier) verify(e *Engine, req *Request) bool {
	secretHex, realm, when, ok := e.parseNonce(req.Nonce)
	if !ok {
		return false
	}
	if secretHex != fmt.Sprintf("%x", e.secret) {
		return false
	}
	if realm != e.realm {
		return false
	}
	if req.Qop != "" && req.Qop != "auth" {
		return false
	}
	if time.Since(time.Unix(when, 0)) > digestNonceLifetime {
		req.digestStale = true
		return false
	}

	u := e.User(req.Username)
	if u == nil {
		return false
	}
	expected := calcDigestResponse(u.Username, e.realm, u.Password, req.Method, req.DigestURI, req.Nonce, req.NC, req.CNonce, req.Qop)
	return constantTimeEqual(expected, req.Password)
}

func (digestVerifier) askLogin(e *Engine, req *Request) {
	stale := "FALSE"
	if req.digestStale {
		stale = "TRUE"
	}
	nonce := e.createNonce()
	challenge := fmt.Sprintf(
		`Digest realm="%s", domain="/", qop="auth", nonce="%s", opaque="%s", algorithm="MD5", stale="%s"`,
		e.realm, nonce, digestOpaqueValue, stale,
	)
	req.pendingHeaders = append(req.pendingHeaders, headerPair{headerWWWAuthenticate, challenge})
}

// digestOpaqueValue is unused by this server beyond round-tripping it;
// RFC 2617 allows any value.
const digestOpaqueValue = "5ccc069c403ebaf9f0171e9517f40e41"

// calcDigestResponse implements RFC 2617 §3.2.2.1: HA1 = stored (cleartext
// is hashed to HA1 first if not already in that form), HA2 =
// MD5(method:uri), response = MD5(HA1:nonce:nc:cnonce:qop:HA2) when qop is
// present, else MD5(HA1:nonce:HA2).
func calcDigestResponse(username, realm, storedPassword, method, uri, nonce, nc, cnonce, qop string) string {
	var ha1value string
	if looksLikeHA1(storedPassword) {
		ha1value = storedPassword
	} else {
		ha1value = ha1(username, realm, storedPassword)
	}
	ha2sum := md5.Sum([]byte(method + ":" + uri))
	ha2 := fmt.Sprintf("%x", ha2sum)

	var buf string
	if qop == "auth" || qop == "auth-int" {
		buf = strings.Join([]string{ha1value, nonce, nc, cnonce, qop, ha2}, ":")
	} else {
		buf = strings.Join([]string{ha1value, nonce, ha2}, ":")
	}
	sum := md5.Sum([]byte(buf))
	return fmt.Sprintf("%x", sum)
}

// parseDigestParams tokenizes the Authorization header's credential
// portion: comma-separated key=value or key="value" pairs, with
// backslash-escaping inside quoted values, following original_source/
// auth.c's parseDigestDetails byte-by-byte scan.
func parseDigestParams(details string) map[string]string {
	out := make(map[string]string)
	i, n := 0, len(details)
	for i < n {
		for i < n && (details[i] == ' ' || details[i] == ',') {
			i++
		}
		keyStart := i
		for i < n && details[i] != '=' {
			i++
		}
		key := strings.ToLower(strings.TrimSpace(details[keyStart:i]))
		if i >= n {
			break
		}
		i++ // skip '='
		var value string
		if i < n && details[i] == '"' {
			i++
			valStart := i
			var sb strings.Builder
			for i < n && details[i] != '"' {
				if details[i] == '\\' && i+1 < n {
					i++
				}
				sb.WriteByte(details[i])
				i++
			}
			_ = valStart
			value = sb.String()
			if i < n {
				i++ // skip closing quote
			}
		} else {
			valStart := i
			for i < n && details[i] != ',' {
				i++
			}
			value = strings.TrimSpace(details[valStart:i])
		}
		if key != "" {
			out[key] = value
		}
	}
	return out
}
