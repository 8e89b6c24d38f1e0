// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Chunked transfer-coding decode (RFC 7230 §4.1) for request bodies.
// Split out of request_parse.go since it's the one parsing concern
// complex enough to deserve its own file.

package goahead

import (
	"strconv"
	"strings"
)

// readChunkedContent decodes a chunked body into req.bodyBuf, enforcing
// the same upload size ceiling a fixed Content-Length body would, since
// the total size isn't known up front.
func (req *Request) readChunkedContent() error {
	maxBody := req.server.opts.MaxBodyBytes
	req.bodyBuf = req.bodyBuf[:0]
	for {
		sizeLine, err := req.nextChunkLine()
		if err != nil {
			return err
		}
		sizeStr := sizeLine
		if i := strings.IndexByte(sizeLine, ';'); i >= 0 {
			sizeStr = sizeLine[:i] // discard chunk extensions
		}
		size, perr := strconv.ParseInt(sizeStr, 16, 64)
		if perr != nil || size < 0 {
			return errProtocol("malformed chunk size")
		}
		if size == 0 {
			// Final chunk: consume trailer headers up to the blank line.
			for {
				trailer, terr := req.nextChunkLine()
				if terr != nil {
					return terr
				}
				if trailer == "" {
					break
				}
			}
			return nil
		}
		if maxBody > 0 && int64(len(req.bodyBuf))+size > maxBody {
			return errTooLarge("chunked request body exceeds configured limit")
		}
		chunk, rerr := req.readChunkBytes(int(size))
		if rerr != nil {
			return rerr
		}
		req.bodyBuf = append(req.bodyBuf, chunk...)
		// Each chunk's data is followed by a bare CRLF.
		if _, err := req.nextChunkLine(); err != nil {
			return err
		}
	}
}

// nextChunkLine reads one CRLF-terminated line from the connection,
// growing req.rbuf as needed; used for chunk-size lines and trailers.
func (req *Request) nextChunkLine() (string, error) {
	for {
		data := req.rbuf.Bytes()
		if i := findLine(data, 0); i >= 0 {
			line := string(data[:i])
			req.rbuf.discard(i + 2)
			return line, nil
		}
		if _, err := req.rbuf.fill(req.conn); err != nil {
			return "", errProtocol("connection closed while reading chunked body")
		}
	}
}

// readChunkBytes returns exactly n bytes of chunk data, blocking on the
// connection as needed.
func (req *Request) readChunkBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	got := 0
	for got < n {
		got += req.rbuf.getBlock(out[got:])
		if got >= n {
			break
		}
		if _, err := req.rbuf.fill(req.conn); err != nil {
			return nil, errProtocol("connection closed while reading chunk data")
		}
	}
	return out, nil
}
