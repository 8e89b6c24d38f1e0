// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Background writer support (component G) and optional response
// compression (component K). BackgroundWriter itself is defined on
// Request in request.go; this file holds the streaming-file helper
// built on top of it and the brotli/gzip negotiation the static file
// handler uses for large bodies.

package goahead

import (
	"compress/gzip"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// compressionThreshold is the minimum response body size (bytes) worth
// the CPU cost of compressing; small files are sent uncompressed.
const compressionThreshold = 1400

// Compressor negotiates Content-Encoding for response bodies component
// K covers. It never touches the request/response control flow — it
// only wraps the io.Writer a body is written through.
type Compressor struct {
	// Level controls both gzip's and brotli's compression effort, 1-9.
	// 0 selects each library's own default.
	Level int
}

// acceptable reports whether the client's Accept-Encoding admits any
// encoding this Compressor supports.
func (c *Compressor) acceptable(req *Request) bool {
	ae := req.Header(headerAcceptEncoding)
	return strings.Contains(ae, "br") || strings.Contains(ae, "gzip")
}

// writeCompressed picks brotli over gzip when both are accepted (better
// ratio at comparable CPU cost for static assets), sets
// Content-Encoding, and writes the compressed body. The compressed size
// isn't known until after encoding completes, so Content-Length can't be
// sent; the body is instead framed as a chunked transfer-coding (RFC 7230
// §4.1) so the connection can still be kept alive for the next request.
func (c *Compressor) writeCompressed(req *Request, data []byte) {
	ae := req.Header(headerAcceptEncoding)
	var encoding string
	switch {
	case strings.Contains(ae, "br"):
		encoding = "br"
	case strings.Contains(ae, "gzip"):
		encoding = "gzip"
	default:
		req.AddHeader(headerContentLength, strconv.Itoa(len(data)))
		req.Write(data)
		return
	}
	req.AddHeader(headerContentEncoding, encoding)
	req.AddHeader(headerTransferEncoding, "chunked")
	req.writeHeadIfNeeded()

	cw := newChunkedWriter(req)
	var w io.WriteCloser
	switch encoding {
	case "br":
		bw := brotli.NewWriterLevel(cw, c.brotliLevel())
		w = bw
	case "gzip":
		gw, _ := gzip.NewWriterLevel(cw, c.gzipLevel())
		w = gw
	}
	w.Write(data)
	w.Close()
	cw.Close()
}

// chunkedWriter frames writes as HTTP/1.1 chunked transfer-coding chunks
// (RFC 7230 §4.1), for any response body whose length isn't known until
// it has been fully produced. Close writes the terminating zero-size
// chunk; it carries no trailer headers.
type chunkedWriter struct {
	w io.Writer
}

func newChunkedWriter(w io.Writer) *chunkedWriter { return &chunkedWriter{w: w} }

func (c *chunkedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := c.w.Write([]byte(strconv.FormatInt(int64(len(p)), 16) + crlf)); err != nil {
		return 0, err
	}
	if _, err := c.w.Write(p); err != nil {
		return 0, err
	}
	if _, err := c.w.Write([]byte(crlf)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *chunkedWriter) Close() error {
	_, err := c.w.Write([]byte("0" + crlf + crlf))
	return err
}

func (c *Compressor) brotliLevel() int {
	if c.Level <= 0 {
		return brotli.DefaultCompression
	}
	if c.Level > brotli.BestCompression {
		return brotli.BestCompression
	}
	return c.Level
}

func (c *Compressor) gzipLevel() int {
	if c.Level <= 0 {
		return gzip.DefaultCompression
	}
	if c.Level > gzip.BestCompression {
		return gzip.BestCompression
	}
	return c.Level
}

// StreamFile installs a BackgroundWriter (component G) that copies path
// to the response in fixed-size chunks, for handlers that want to avoid
// reading a large file fully into memory before responding. FileHandler
// does not use it: handler_file.go reads every file whole.
func StreamFile(req *Request, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return errInternal("failed to open file for streaming", err)
	}
	req.AddHeader(headerContentLength, strconv.FormatInt(size, 10))
	req.writeHeadIfNeeded()

	buf := make([]byte, size4K)
	return req.SetBackgroundWriter(func(w io.Writer) (bool, error) {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				f.Close()
				return true, werr
			}
		}
		if rerr == io.EOF {
			f.Close()
			return true, nil
		}
		if rerr != nil {
			f.Close()
			return true, rerr
		}
		return false, nil
	})
}
