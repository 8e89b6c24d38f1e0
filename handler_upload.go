// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Raw upload capture to a temp file, size-capped, grounded on
// original_source/upload.c's spooling behavior. The body is already held
// in memory (req.bodyBuf) when the handler runs and is copied to disk
// whole; multipart bodies are stored as received, not split into parts.

package goahead

import (
	"bytes"
	"io"
	"os"
)

// uploadState tracks the spooled temp file for an in-progress upload.
type uploadState struct {
	file *os.File
	path string
	size int64
}

// UploadHandler accepts POST/PUT bodies, spooling them to a temp file
// under Dir and invoking OnComplete with the final path once the body
// has been fully received. MaxBytes caps the spooled size; a body over it
// is answered with RequestTooLarge before any temp file is created.
type UploadHandler struct {
	name       string
	Dir        string
	MaxBytes   int64
	OnComplete func(req *Request, path string) bool
}

func NewUploadHandler(name, dir string) *UploadHandler {
	return &UploadHandler{name: name, Dir: dir}
}

func (h *UploadHandler) Name() string { return h.name }
func (h *UploadHandler) Close() error { return nil }

func (h *UploadHandler) Match(req *Request) bool {
	return req.Method == "POST" || req.Method == "PUT"
}

// Serve spools the already-collected req.bodyBuf (request_parse.go has
// already applied the server's overall MaxBodyBytes ceiling by the time
// a handler runs; MaxBytes here lets an individual upload route impose
// a tighter cap) to a temp file and hands the path to OnComplete.
func (h *UploadHandler) Serve(req *Request) bool {
	if h.MaxBytes > 0 && int64(len(req.bodyBuf)) > h.MaxBytes {
		req.errorResponse(errTooLarge("upload exceeds this route's size limit"))
		return true
	}

	f, err := os.CreateTemp(h.Dir, "upload-*")
	if err != nil {
		req.errorResponse(errInternal("failed to create upload temp file", err))
		return true
	}
	st := &uploadState{file: f, path: f.Name()}
	req.upload = st

	n, werr := io.Copy(f, bytes.NewReader(req.bodyBuf))
	st.size = n
	f.Close()
	if werr != nil {
		os.Remove(st.path)
		req.errorResponse(errInternal("failed to spool upload", werr))
		return true
	}

	if h.OnComplete != nil {
		return h.OnComplete(req, st.path)
	}
	req.Status = StatusCreated
	req.writeHeadIfNeeded()
	req.Done()
	return true
}
