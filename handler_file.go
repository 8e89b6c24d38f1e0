// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Static file handler: webRoot-relative lookup, directory-to-index
// redirect, an If-Modified-Since precondition (an ETag header is sent but
// If-None-Match is not evaluated), an optional directory listing, and
// opportunistic compression of large files. Every file is read whole into
// memory and written inline; no background writer is installed.

package goahead

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileHandler serves files under WebRoot. ReadOnly true rejects PUT and
// DELETE (the "ROM mode" built-in file handlers are gated on).
type FileHandler struct {
	name       string
	WebRoot    string
	IndexFile  string            // defaults to "index.html"
	AutoIndex  bool              // list directories lacking an index file
	ReadOnly   bool              // reject PUT/DELETE
	MimeTypes  map[string]string // overrides/extends fileDefaultMimeTypes
	Compressor *Compressor       // component K; nil disables compression
}

// NewFileHandler constructs a FileHandler named name, rooted at webRoot.
func NewFileHandler(name, webRoot string) *FileHandler {
	return &FileHandler{name: name, WebRoot: strings.TrimRight(webRoot, "/"), IndexFile: "index.html"}
}

func (h *FileHandler) Name() string { return h.name }
func (h *FileHandler) Close() error { return nil }

func (h *FileHandler) Match(req *Request) bool {
	switch req.Method {
	case "GET", "HEAD":
		return true
	case "PUT", "DELETE":
		return !h.ReadOnly
	default:
		return false
	}
}

func (h *FileHandler) Serve(req *Request) bool {
	switch req.Method {
	case "PUT":
		return h.servePut(req)
	case "DELETE":
		return h.serveDelete(req)
	default:
		return h.serveGet(req)
	}
}

func (h *FileHandler) resolve(req *Request) string {
	return filepath.Join(h.WebRoot, filepath.FromSlash(req.Path))
}

func (h *FileHandler) serveGet(req *Request) bool {
	fullPath := h.resolve(req)
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			req.errorResponse(errNotFound("file not found"))
		} else {
			req.errorResponse(errInternal("stat failed", err))
		}
		return true
	}

	if info.IsDir() {
		if !strings.HasSuffix(req.Path, "/") {
			req.redirect(StatusFound, req.Path+"/")
			return true
		}
		indexPath := filepath.Join(fullPath, h.IndexFile)
		if indexInfo, ierr := os.Stat(indexPath); ierr == nil && indexInfo.Mode().IsRegular() {
			fullPath, info = indexPath, indexInfo
		} else if h.AutoIndex {
			h.serveDirListing(req, fullPath)
			return true
		} else {
			req.errorResponse(errNotFound("no index file and autoIndex disabled"))
			return true
		}
	}

	etag := fmt.Sprintf(`"%x-%x"`, info.ModTime().Unix(), info.Size())
	if !h.evalPreconditions(req, info.ModTime(), etag) {
		return true
	}

	data, rerr := os.ReadFile(fullPath)
	if rerr != nil {
		req.errorResponse(errInternal("read failed", rerr))
		return true
	}

	req.AddHeader(headerContentType, h.contentType(fullPath))
	req.AddHeader(headerLastModified, info.ModTime().UTC().Format(time.RFC1123))
	req.AddHeader("etag", etag)

	if req.Method == "HEAD" {
		req.AddHeader(headerContentLength, strconv.Itoa(len(data)))
		req.writeHeadIfNeeded()
		req.Done()
		return true
	}

	if h.Compressor != nil && h.Compressor.acceptable(req) && len(data) > compressionThreshold {
		h.Compressor.writeCompressed(req, data)
		req.Done()
		return true
	}

	req.AddHeader(headerContentLength, strconv.Itoa(len(data)))
	req.Write(data)
	req.Done()
	return true
}

// evalPreconditions handles If-Modified-Since, returning false (and
// having already written the response) when the client's cached copy is
// still fresh.
func (h *FileHandler) evalPreconditions(req *Request, modTime time.Time, etag string) bool {
	if ims := req.Header(headerIfModifiedSince); ims != "" {
		if t, err := time.Parse(time.RFC1123, ims); err == nil && !modTime.After(t) {
			req.Status = StatusNotModified
			req.AddHeader("etag", etag)
			req.writeHeadIfNeeded()
			req.Done()
			return false
		}
	}
	return true
}

func (h *FileHandler) contentType(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if h.MimeTypes != nil {
		if mt, ok := h.MimeTypes[ext]; ok {
			return mt
		}
	}
	if mt, ok := fileDefaultMimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

func (h *FileHandler) serveDirListing(req *Request, dirPath string) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		req.errorResponse(errInternal("directory read failed", err))
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var sb strings.Builder
	sb.WriteString(`<table border="1">`)
	sb.WriteString(`<tr><th>name</th><th>size</th><th>modified</th></tr>`)
	for _, e := range entries {
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}
		name := fileHTMLEscape(e.Name())
		sb.WriteString(fmt.Sprintf(`<tr><td><a href="%s">%s</a></td><td>%d</td><td>%s</td></tr>`,
			name, name, info.Size(), info.ModTime().Format(time.RFC1123)))
	}
	sb.WriteString("</table>")

	body := sb.String()
	req.AddHeader(headerContentType, "text/html; charset=utf-8")
	req.AddHeader(headerContentLength, strconv.Itoa(len(body)))
	req.WriteString(body)
	req.Done()
}

func fileHTMLEscape(s string) string { return fileHTMLEscaper.Replace(s) }

var fileHTMLEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// servePut writes the request body to fullPath, creating parent
// directories as needed. Only reachable when ReadOnly is false.
func (h *FileHandler) servePut(req *Request) bool {
	fullPath := h.resolve(req)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		req.errorResponse(errInternal("mkdir failed", err))
		return true
	}
	if err := os.WriteFile(fullPath, req.bodyBuf, 0o644); err != nil {
		req.errorResponse(errInternal("write failed", err))
		return true
	}
	req.Status = StatusCreated
	req.writeHeadIfNeeded()
	req.Done()
	return true
}

// serveDelete removes fullPath. Only reachable when ReadOnly is false.
func (h *FileHandler) serveDelete(req *Request) bool {
	fullPath := h.resolve(req)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			req.errorResponse(errNotFound("file not found"))
		} else {
			req.errorResponse(errInternal("delete failed", err))
		}
		return true
	}
	req.Status = StatusNoContent
	req.writeHeadIfNeeded()
	req.Done()
	return true
}

var fileDefaultMimeTypes = map[string]string{
	"css":  "text/css",
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"ico":  "image/x-icon",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"js":   "application/javascript",
	"json": "application/json",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"txt":  "text/plain",
	"xml":  "text/xml",
	"zip":  "application/zip",
}
