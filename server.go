// Copyright (c) 2024 The goahead Authors.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Server owns every piece of process-wide state (route table, auth
// engine, session store, handler registry) as a single constructed
// value. It listens, accepts, and runs one goroutine per connection —
// the idiomatic Go stand-in for a cooperative single-threaded event
// loop. Each connection goroutine processes requests one at a time and
// serially; concurrency comes from having many such goroutines rather
// than from multiplexing within one.

package goahead

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Options configures a Server. Zero values are replaced with the
// defaults noted per field.
type Options struct {
	Addr string // listen address, e.g. ":8080"

	Realm     string // auth realm; defaults to "goahead"
	AutoLogin bool   // skip authentication entirely (development mode)
	LoginPage string // form auth redirect target; defaults to "/login.html"

	MaxHeaderBytes int32         // request line + header ceiling; defaults to 16K
	MaxBodyBytes   int64         // request body ceiling; 0 means unbounded
	RequestTimeout time.Duration // read only by Request.deadline, which the serve loop never calls: no per-request wall-clock cap is applied
	IdleTimeout    time.Duration // connection idle read deadline; defaults to 60s
	SessionIdle    time.Duration // session TTL; defaults to 30m

	Logger Logger // defaults to a logrus-backed logger writing to stderr
}

// Server owns every piece of global state: the route table, the auth
// engine, the session store, and the handler registry.
type Server struct {
	opts Options

	auth     *Engine
	routes   *Table
	sessions *SessionStore
	handlers *Registry
	logger   Logger

	listener net.Listener
	wg       sync.WaitGroup
	closeCh  chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

// NewServer constructs a Server ready to accept routes and users, but
// not yet listening. It is the equivalent of the embedding API's
// runtime-open step.
func NewServer(opts Options) (*Server, error) {
	if opts.MaxHeaderBytes <= 0 {
		opts.MaxHeaderBytes = size16K
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.Realm == "" {
		opts.Realm = "goahead"
	}

	engine, err := newEngine(opts.Realm)
	if err != nil {
		return nil, err
	}
	engine.autoLogin = opts.AutoLogin
	if opts.LoginPage != "" {
		engine.loginPage = opts.LoginPage
	}

	logger := opts.Logger
	if logger == nil {
		logger = newLogger(os.Stderr)
	}

	return &Server{
		opts:     opts,
		auth:     engine,
		routes:   &Table{},
		sessions: newSessionStore(opts.SessionIdle),
		handlers: newRegistry(),
		logger:   logger,
		closeCh:  make(chan struct{}),
	}, nil
}

// DefineHandler registers a named Handler, for AddRoute's Handlers list
// to reference.
func (s *Server) DefineHandler(h Handler) { s.handlers.Define(h) }

// DefineAction registers a bare function as a named handler, the
// shape most /action/* endpoints use.
func (s *Server) DefineAction(name string, fn func(req *Request) bool) {
	s.handlers.Define(&HandlerFunc{name: name, fn: fn})
}

// AddRoute installs a route into the table.
func (s *Server) AddRoute(r *Route) { s.routes.Add(r) }

// RemoveRoute deletes every route with the given prefix.
func (s *Server) RemoveRoute(prefix string) { s.routes.Remove(prefix) }

// AddUser, AddRole, and SetUserRoles delegate to the auth engine.
func (s *Server) AddUser(username, password string, roles []string) *User {
	return s.auth.AddUser(username, password, roles)
}
func (s *Server) AddRole(name string, abilities []string) *Role {
	return s.auth.AddRole(name, abilities)
}
func (s *Server) SetUserRoles(username string, roles []string) bool {
	return s.auth.SetUserRoles(username, roles)
}

// LoginUser programmatically authenticates req as username, bypassing
// credential verification — for host applications that perform their own
// out-of-band authentication (e.g. an SSO callback) and simply want a
// goahead session established.
func (s *Server) LoginUser(req *Request, username string) {
	sess := req.getOrCreateSession()
	sess.Set(WEBS_SESSION_USERNAME, username)
	req.Username = username
}

// LogoutUser clears the cached identity from req's session, if any.
func (s *Server) LogoutUser(req *Request) {
	if sess := req.existingSession(); sess != nil {
		sess.Remove(WEBS_SESSION_USERNAME)
	}
}

// EnableFormLogin wires up POST /action/login and /action/logout against
// loginAction/logoutAction (auth_form.go), the actions formVerifier.askLogin
// redirects unauthenticated requests to. Host applications using AuthForm on
// any route must call this once during setup so that redirect has a handler
// behind it.
func (s *Server) EnableFormLogin() {
	actions := NewActionHandler("goahead-form-login", "/action/")
	actions.Define("login", loginAction)
	actions.Define("logout", logoutAction)
	s.DefineHandler(actions)
	s.AddRoute(&Route{Prefix: "/action/login", Handlers: []string{"goahead-form-login"}})
	s.AddRoute(&Route{Prefix: "/action/logout", Handlers: []string{"goahead-form-login"}})
}

// Listen opens the TCP listener. ServeForever then accepts connections
// from it until Close is called.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errUnavailable("failed to listen: " + err.Error())
	}
	s.listener = ln
	return nil
}

// ServeForever accepts connections and serves each on its own goroutine
// until Close is called, at which point it returns nil.
func (s *Server) ServeForever() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				s.wg.Wait()
				return nil
			default:
				s.logger.Warnf("accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections, tears down the session store's
// sweep goroutine, and waits for every connection goroutine to exit. Open
// connections are not closed by it: a kept-alive connection exits only
// when its client closes it or its IdleTimeout read deadline passes.
func (s *Server) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	close(s.closeCh)
	if s.listener != nil {
		s.listener.Close()
	}
	s.sessions.Close()
	s.wg.Wait()
	return s.handlers.Close()
}

// serveConn runs the request loop for one connection, recovering from
// handler panics so one bad request can't take down the whole process.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("panic serving %s: %v", conn.RemoteAddr(), r)
		}
	}()

	req := newRequest(s, conn)
	defer req.release()

	for {
		if s.opts.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		if !s.serveOneRequest(req) {
			return
		}
		req.reset()
	}
}

// serveOneRequest parses and answers exactly one request, returning
// whether the connection should be kept open for another.
func (s *Server) serveOneRequest(req *Request) bool {
	if err := req.readRequestLine(); err != nil {
		s.respondParseError(req, err)
		return false
	}
	if err := req.readHeaders(); err != nil {
		s.respondParseError(req, err)
		return false
	}
	if err := req.readContent(); err != nil {
		s.respondParseError(req, err)
		return false
	}

	req.state = stateReady
	route := s.routes.Select(req.Method, req.Path)
	if route == nil {
		req.errorResponse(errNotFound("no route matches this request"))
	} else {
		req.route = route
		req.state = stateRunning
		if s.auth.Authenticate(req) {
			if !s.authorizeAbilities(req, route) {
				req.errorResponse(errAuthRequired("insufficient privileges for this resource"))
			} else if !dispatch(route, s.handlers, req) {
				req.errorResponse(errNotFound("no handler claimed this request"))
			}
		}
	}

	if req.bgInstalled {
		if err := req.flush(); err != nil {
			return false
		}
		s.runBackgroundWriter(req)
	}
	if err := req.flush(); err != nil {
		return false
	}

	return !req.closeWanted && connectionPersistent(req)
}

// respondParseError writes an error response for failures surfaced as a
// typed *Error; a raw I/O error (client closed the connection early)
// ends the connection quietly instead.
func (s *Server) respondParseError(req *Request, err error) {
	if gerr, ok := err.(*Error); ok {
		req.errorResponse(gerr)
		req.flush()
	}
}

// authorizeAbilities reports whether the authenticated user (if any)
// satisfies every ability the route requires.
func (s *Server) authorizeAbilities(req *Request, route *Route) bool {
	if len(route.Abilities) == 0 {
		return true
	}
	u := s.auth.User(req.Username)
	var abilities map[string]bool
	if u != nil {
		abilities = u.Abilities()
	}
	return route.satisfiedBy(abilities)
}

// runBackgroundWriter drives an installed BackgroundWriter to completion
// (component G), writing directly to the connection since the response
// head has already been flushed.
func (s *Server) runBackgroundWriter(req *Request) {
	for {
		done, err := req.bgWriter(req.conn)
		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Warnf("background writer error: %v", err)
			req.closeWanted = true
			break
		}
		if done {
			break
		}
	}
	req.Done()
}

// connectionPersistent reports whether the connection should stay open
// for another request, per the HTTP/1.x default-persistence rules.
func connectionPersistent(req *Request) bool {
	conn := strings.ToLower(req.Header(headerConnection))
	if req.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}
