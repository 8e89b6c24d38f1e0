// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Response assembly: status line + headers onto req.wbuf, then body
// bytes either written inline (Write) or streamed by an installed
// BackgroundWriter. The write buffer is drained opportunistically by
// the connection loop rather than flushed synchronously on every call.

package goahead

import (
	"fmt"
	"strconv"
	"time"
)

// SetStatus records the response status code; it must be called before
// the first Write (or not at all, in which case 200 is assumed).
func (req *Request) SetStatus(status int) { req.Status = status }

// AddHeader appends a response header. Like request headers, duplicates
// of the same name are not coalesced — callers are expected not to add
// a name twice.
func (req *Request) AddHeader(name, value string) {
	req.pendingHeaders = append(req.pendingHeaders, headerPair{name, value})
}

// writeHeadIfNeeded serializes the status line and headers into wbuf
// exactly once per request.
func (req *Request) writeHeadIfNeeded() error {
	if req.headersWritten {
		return nil
	}
	req.headersWritten = true
	status := req.Status
	if status == 0 {
		status = StatusOK
	}
	if err := req.wbuf.putString(fmt.Sprintf("%s %d %s\r\n", req.Proto, status, statusMessage(status))); err != nil {
		return err
	}
	if err := req.wbuf.putString(fmt.Sprintf("%s: %s\r\n", headerServer, serverBanner)); err != nil {
		return err
	}
	if err := req.wbuf.putString(fmt.Sprintf("%s: %s\r\n", headerDate, time.Now().UTC().Format(time.RFC1123))); err != nil {
		return err
	}
	if req.closeWanted {
		if err := req.wbuf.putString(fmt.Sprintf("%s: close\r\n", headerConnection)); err != nil {
			return err
		}
	}
	for _, h := range req.pendingHeaders {
		if err := req.wbuf.putString(fmt.Sprintf("%s: %s\r\n", h.Name, h.Value)); err != nil {
			return err
		}
	}
	return req.wbuf.putString(crlf)
}

// Write appends body bytes to the response, writing the status line and
// headers first if they haven't been sent yet. It flushes to the
// connection as needed rather than growing wbuf without bound.
func (req *Request) Write(p []byte) (int, error) {
	if err := req.writeHeadIfNeeded(); err != nil {
		return 0, err
	}
	if err := req.wbuf.putBlock(p); err != nil {
		return 0, err
	}
	req.responseSize += int64(len(p))
	if _, _, err := req.wbuf.drain(req.conn); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString is a convenience wrapper around Write.
func (req *Request) WriteString(s string) (int, error) { return req.Write([]byte(s)) }

// flush pushes any remaining buffered response bytes to the connection;
// called once per request by the serving loop after the handler (or the
// last background-writer callback) reports done.
func (req *Request) flush() error {
	for req.wbuf.Len() > 0 {
		_, wouldBlock, err := req.wbuf.drain(req.conn)
		if err != nil {
			return err
		}
		if wouldBlock {
			continue
		}
	}
	return nil
}

// errorResponse renders err as a complete response: a short plain-text
// body describing the failure, with Connection: close forced whenever
// the error's kind marks the connection as unsalvageable (component D/I).
func (req *Request) errorResponse(err *Error) {
	if err.Kind.closeOnError() {
		req.closeWanted = true
	}
	req.Status = err.Status
	req.AddHeader(headerContentType, "text/plain; charset=utf-8")
	req.AddHeader(headerContentLength, strconv.Itoa(len(err.Message)))
	req.WriteString(err.Message)
	req.Done()
}

// redirect writes a Location-bearing response with no body, used by the
// form-auth and logout action handlers.
func (req *Request) redirect(status int, location string) {
	req.Status = status
	req.AddHeader(headerLocation, location)
	req.AddHeader(headerContentLength, "0")
	req.writeHeadIfNeeded()
	req.Done()
}
