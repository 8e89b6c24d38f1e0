// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Incremental request-line, header, and content parsing on top of the
// pooled Buffer (component A). Reads block the serving goroutine, which
// is the idiomatic Go realization of the cooperative single-threaded
// event loop the underlying model describes: one goroutine per
// connection stands in for one "task" in that loop.

package goahead

import (
	"net/url"
	"strconv"
	"strings"
)

const crlf = "\r\n"

// findLine returns the index of the next "\r\n" in buf starting at from,
// or -1 if not yet present.
func findLine(buf []byte, from int) int {
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// readRequestLine parses "METHOD SP target SP HTTP/x.y". Target may be an
// absolute path ("/foo?bar"), or (rarely, for proxy-style requests) an
// absolute URI; this server only serves origin-form targets.
func (req *Request) readRequestLine() error {
	req.state = stateFirstLine
	data := req.rbuf.Bytes()
	lineEnd := findLine(data, 0)
	for lineEnd < 0 {
		n, err := req.rbuf.fill(req.conn)
		if n == 0 && err != nil {
			return err // caller treats as a clean connection close, not a protocol error
		}
		data = req.rbuf.Bytes()
		lineEnd = findLine(data, 0)
		if int32(len(data)) >= req.rbuf.maxSize {
			return errTooLarge("request line too large")
		}
	}
	line := string(data[:lineEnd])
	req.rbuf.discard(lineEnd + 2)

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return errProtocol("malformed request line")
	}
	req.Method = parts[0]
	req.RawPath = parts[1]
	req.Proto = parts[2]
	if req.Proto != "HTTP/1.0" && req.Proto != "HTTP/1.1" {
		return errProtocol("unsupported protocol version")
	}

	target := parts[1]
	if q := strings.IndexByte(target, '?'); q >= 0 {
		req.Query = target[q+1:]
		target = target[:q]
	}
	decoded, derr := url.PathUnescape(target)
	if derr != nil {
		return errProtocol("malformed percent-encoding in request target")
	}
	req.Path = cleanPath(decoded)
	return nil
}

// cleanPath collapses "." and ".." segments and duplicate slashes without
// escaping the root, mirroring path.Clean but guaranteeing a leading "/".
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}

// readHeaders consumes header lines up to and including the blank line
// that terminates them, populating req.headers and the derived fields
// (Host, ContentLength, Chunked, AuthType/AuthDetails, cookie-derived
// sessionID, Referrer).
func (req *Request) readHeaders() error {
	req.state = stateHeaders
	for {
		data := req.rbuf.Bytes()
		lineEnd := findLine(data, 0)
		for lineEnd < 0 {
			n, err := req.rbuf.fill(req.conn)
			if n == 0 && err != nil {
				return errProtocol("connection closed while reading headers")
			}
			data = req.rbuf.Bytes()
			lineEnd = findLine(data, 0)
			if int32(len(data)) >= req.rbuf.maxSize {
				return errTooLarge("headers too large")
			}
		}
		line := string(data[:lineEnd])
		req.rbuf.discard(lineEnd + 2)
		if line == "" {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return errProtocol("malformed header line")
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		req.setHeader(name, value)
	}
	return req.deriveHeaderFields()
}

// deriveHeaderFields populates fields computed from the raw header map.
func (req *Request) deriveHeaderFields() error {
	req.Host = req.Header(headerHost)
	req.Referrer = req.Header(headerReferer)

	if te := req.Header(headerTransferEncoding); strings.EqualFold(te, "chunked") {
		req.Chunked = true
	}
	if cl := req.Header(headerContentLength); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return errProtocol("malformed Content-Length")
		}
		req.ContentLength = n
	}
	if req.Chunked && req.ContentLength > 0 {
		// RFC 7230 §3.3.3: a message must not have both; chunked wins.
		req.ContentLength = 0
	}

	if auth := req.Header(headerAuthorization); auth != "" {
		sp := strings.IndexByte(auth, ' ')
		if sp > 0 {
			req.AuthType = auth[:sp]
			req.AuthDetails = strings.TrimSpace(auth[sp+1:])
		}
	}

	if cookie := req.Header(headerCookie); cookie != "" {
		req.sessionID = extractCookie(cookie, sessionCookieName)
	}
	return nil
}

// extractCookie finds name= within a raw Cookie header value built from
// "; "-separated pairs.
func extractCookie(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		if part[:eq] == name {
			return part[eq+1:]
		}
	}
	return ""
}

// readContent fills req.bodyBuf with exactly ContentLength bytes (fixed
// length) or, when Chunked, delegates to the chunked decoder in
// request_chunk.go. maxBody bounds both paths, per the PUT/POST limit
// the upload handler enforces.
func (req *Request) readContent() error {
	req.state = stateContent
	if req.Chunked {
		return req.readChunkedContent()
	}
	if req.ContentLength == 0 {
		return nil
	}
	maxBody := req.server.opts.MaxBodyBytes
	if maxBody > 0 && req.ContentLength > maxBody {
		return errTooLarge("request body exceeds configured limit")
	}
	req.bodyBuf = make([]byte, req.ContentLength)
	got := int64(0)
	for got < req.ContentLength {
		// Drain whatever the header read already buffered before blocking
		// for more off the wire.
		n := req.rbuf.getBlock(req.bodyBuf[got:])
		got += int64(n)
		if got >= req.ContentLength {
			break
		}
		if _, err := req.rbuf.fill(req.conn); err != nil {
			return errProtocol("connection closed while reading body")
		}
	}
	return nil
}
