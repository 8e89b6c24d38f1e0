// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Request state machine (component E): one Request per in-flight request,
// bound to a connection. Parses incrementally, dispatches through the
// route table and auth engine, then produces a response — either
// synchronously or via an installed background writer (component G).

package goahead

import (
	"io"
	"net"
	"strings"
	"time"
)

// requestState enumerates a request's lifecycle. BEGIN is split into
// stateBegin/stateFirstLine to distinguish "no bytes yet" from
// "scanning the request line"; this is purely an internal refinement —
// externally only COMPLETE is observable, via IsComplete.
type requestState int8

const (
	stateBegin requestState = iota
	stateFirstLine
	stateHeaders
	stateContent
	stateReady
	stateRunning
	stateComplete
)

// headerPair is a single pending response header, order-preserving.
type headerPair struct {
	Name  string
	Value string
}

// BackgroundWriter streams a response body across multiple writability
// callbacks instead of buffering it whole, per component G. It returns
// done=true (and typically io.EOF as err, though err may be nil on the
// final call) once the source is exhausted.
type BackgroundWriter func(w io.Writer) (done bool, err error)

// Request is the per-connection, per-in-flight-request state, component E
// and §3's data model combined into one value. Exported fields are safe
// for handlers to read and, for the response-shaping ones, to write
// before calling Write/Done.
type Request struct {
	server *Server
	conn   net.Conn

	state requestState

	// Request line
	Method  string
	Scheme  string
	Host    string
	Port    string
	Path    string // normalized, percent-decoded
	RawPath string // as received, before decoding
	Query   string
	Proto   string // "HTTP/1.0" or "HTTP/1.1"

	headers     map[string]string // lowercased name -> first-seen value
	headerOrder []string          // insertion order, for write-back/debugging

	ContentLength int64
	Chunked       bool
	Referrer      string

	// Authentication state (component D)
	AuthType    string // raw scheme token from Authorization header
	AuthDetails string
	Username    string
	Password    string
	Encoded     bool
	Realm       string
	Nonce       string
	NC          string
	CNonce      string
	Qop         string
	Opaque      string
	DigestURI   string
	digestStale bool

	sessionID      string
	session        *Session
	route          *Route
	bgWriter       BackgroundWriter
	bgInstalled    bool
	upload         *uploadState

	// Response assembly
	Status         int
	pendingHeaders []headerPair
	headersWritten bool
	closeWanted    bool // "Connection: close" negotiated or forced by an error
	responseSize   int64

	rbuf Buffer // read/parse side
	wbuf Buffer // write/response side

	bodyBuf    []byte // collected request content (fixed or de-chunked)
	formParsed bool
	formValues map[string]string
}

// newRequest allocates a Request bound to conn, with buffers sized from
// the owning Server's configured limits.
func newRequest(server *Server, conn net.Conn) *Request {
	req := &Request{server: server, conn: conn, state: stateBegin}
	req.rbuf.initBuffer(server.opts.MaxHeaderBytes)
	req.wbuf.initBuffer(0)
	req.headers = make(map[string]string, 16)
	return req
}

// reset clears per-request fields so the same Request value (and its
// buffers) can be reused for the next request on a persistent connection.
func (req *Request) reset() {
	req.state = stateBegin
	req.Method, req.Scheme, req.Host, req.Port = "", "", "", ""
	req.Path, req.RawPath, req.Query, req.Proto = "", "", "", ""
	for k := range req.headers {
		delete(req.headers, k)
	}
	req.headerOrder = req.headerOrder[:0]
	req.ContentLength = 0
	req.Chunked = false
	req.Referrer = ""
	req.AuthType, req.AuthDetails = "", ""
	req.Username, req.Password, req.Encoded = "", "", false
	req.Realm, req.Nonce, req.NC, req.CNonce, req.Qop, req.Opaque, req.DigestURI = "", "", "", "", "", "", ""
	req.digestStale = false
	req.sessionID, req.session = "", nil
	req.route = nil
	req.bgWriter, req.bgInstalled = nil, false
	req.upload = nil
	req.Status = 0
	req.pendingHeaders = req.pendingHeaders[:0]
	req.headersWritten = false
	req.closeWanted = false
	req.responseSize = 0
	req.bodyBuf = req.bodyBuf[:0]
	req.formParsed = false
	req.formValues = nil
	req.rbuf.reset()
	req.wbuf.reset()
}

// release frees any pooled buffer storage this Request is holding;
// called once when the connection is torn down.
func (req *Request) release() {
	req.rbuf.free()
	req.wbuf.free()
}

// Done transitions RUNNING -> COMPLETE. Handlers that complete
// synchronously call this after writing their response; handlers that
// install a background writer rely on the writer loop to call it once
// the writer reports done.
func (req *Request) Done() {
	if req.state == stateRunning {
		req.state = stateComplete
	}
}

// IsComplete reports whether the request has reached COMPLETE and has no
// pending background writer.
func (req *Request) IsComplete() bool {
	return req.state == stateComplete && !req.bgInstalled
}

// SetBackgroundWriter installs a deferred write callback. Installing a
// second one while the first is still pending is a programming error;
// this returns an error rather than silently overwriting it.
func (req *Request) SetBackgroundWriter(bw BackgroundWriter) error {
	if req.bgInstalled {
		return errInternal("background writer already installed for this request", nil)
	}
	if req.state == stateComplete {
		return errInternal("cannot install a background writer after COMPLETE", nil)
	}
	req.bgWriter = bw
	req.bgInstalled = true
	return nil
}

// Header returns the first-seen value of a request header, matched
// case-insensitively.
func (req *Request) Header(name string) string {
	return req.headers[strings.ToLower(name)]
}

// setHeader records a header the first time it's seen; later duplicates
// of the same name are ignored, preserving first occurrence.
func (req *Request) setHeader(name, value string) {
	key := strings.ToLower(name)
	if _, seen := req.headers[key]; seen {
		return
	}
	req.headers[key] = value
	req.headerOrder = append(req.headerOrder, key)
}

// Route returns the route selected for this request, or nil before
// READY.
func (req *Request) Route() *Route { return req.route }

// deadline returns the absolute time the connection's next read/write
// must complete by, derived from the server's per-request wall-clock cap.
func (req *Request) deadline() time.Time {
	if req.server.opts.RequestTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(req.server.opts.RequestTimeout)
}
