// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

/*
Package goahead implements the core of an embedded HTTP/1.1 server: a
per-connection request state machine, a longest-prefix route table, a
user/role/ability authentication engine (Basic, Digest, and form login),
and a small set of built-in handlers (static files, actions, redirects,
uploads).

A host process constructs a Server, registers users/roles/routes/handlers
(directly or by loading a route file, see LoadConfig), calls Listen to
bind Options.Addr, and then ServeForever to run the accept loop. Every
connection is served by its own goroutine; within one connection the next
request is not parsed until the current one reaches the complete state.
*/
package goahead
