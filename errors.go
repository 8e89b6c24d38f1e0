// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Error kinds. Nothing panics with these. Handlers render them through
// Request.errorResponse and return claimed/unclaimed; the request parsers
// return them as ordinary error values, which the serve loop renders the
// same way before closing the connection. Config loading and listener
// setup return them to the host.

package goahead

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the category of failure a request or config load can
// raise, and the HTTP status and close policy that follow from it.
type Kind int8

const (
	KindNone Kind = iota
	KindProtocol
	KindAuthRequired
	KindAuthBadProtocol
	KindNotFound
	KindTooLarge
	KindTimeout
	KindInternal
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "ProtocolError"
	case KindAuthRequired:
		return "AuthRequired"
	case KindAuthBadProtocol:
		return "AuthBadProtocol"
	case KindNotFound:
		return "NotFound"
	case KindTooLarge:
		return "RequestTooLarge"
	case KindTimeout:
		return "Timeout"
	case KindInternal:
		return "InternalError"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "none"
	}
}

// closeOnError reports whether this Kind always closes the connection.
func (k Kind) closeOnError() bool {
	switch k {
	case KindProtocol, KindTooLarge, KindTimeout, KindInternal, KindUnavailable:
		return true
	default:
		return false
	}
}

// Error is the typed error value for the kinds above. Status is the HTTP
// status code that should accompany the kind when rendered to a client.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// newError builds an Error, capturing a stack trace via pkg/errors when
// cause is non-nil so InternalError diagnostics printed at startup carry
// provenance. Stack traces are logged, never rendered to clients.
func newError(kind Kind, status int, message string, cause error) *Error {
	e := &Error{Kind: kind, Status: status, Message: message}
	if cause != nil {
		e.cause = errors.WithStack(cause)
	}
	return e
}

func errProtocol(message string) *Error {
	return newError(KindProtocol, StatusBadRequest, message, nil)
}
func errAuthRequired(message string) *Error {
	return newError(KindAuthRequired, StatusUnauthorized, message, nil)
}
func errAuthBadProtocol(message string) *Error {
	return newError(KindAuthBadProtocol, StatusBadRequest, message, nil)
}
func errNotFound(message string) *Error {
	return newError(KindNotFound, StatusNotFound, message, nil)
}
func errTooLarge(message string) *Error {
	return newError(KindTooLarge, StatusContentTooLarge, message, nil)
}
func errTimeout(message string) *Error {
	return newError(KindTimeout, StatusRequestTimeout, message, nil)
}
func errInternal(message string, cause error) *Error {
	return newError(KindInternal, StatusInternalServerError, message, cause)
}
func errUnavailable(message string) *Error {
	return newError(KindUnavailable, StatusServiceUnavailable, message, nil)
}
