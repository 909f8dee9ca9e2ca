// Package webserver accepts SECURE-negotiated TCP connections, serves
// static files (with optional sitescript substitution) straight off
// disk, and hands everything else to a Handler. Grounded on
// original_source/src/webserver/webserver.py's WebServer/_listen and
// webrequest.py's evaluate/send_page.
package webserver

import (
	"fmt"
	"net"
	"sync"

	"github.com/joanet/controlplane/httpcodec"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/wireproto"
)

// Handler answers one parsed request from a caller at remoteIP.
type Handler func(req *httpcodec.Request, remoteIP string) *httpcodec.Response

// Server is a single-port SECURE-then-HTTP listener.
type Server struct {
	addr      string
	publicDir string
	handler   Handler
	log       *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	started  bool
}

// New builds a Server bound to addr, serving publicDir's contents ahead
// of handler for any path that resolves to a file there.
func New(addr, publicDir string, handler Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	return &Server{addr: addr, publicDir: publicDir, handler: handler, log: log}
}

// Start binds the listener and begins accepting connections on a
// background goroutine, returning once the bind has succeeded.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("webserver: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.started = true
	s.mu.Unlock()

	go s.acceptLoop(ln)
	return nil
}

// Stop closes the listener. In-flight connections are left to finish on
// their own.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := !s.started
			s.mu.Unlock()
			if stopped {
				return
			}
			s.log.Errorf("webserver: accept: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn performs the SECURE handshake once, then serves requests
// off the same stream until the peer disconnects or sends something the
// codec can't parse, matching the connection-reuse-after-101 decision
// the rest of the wire protocol already follows.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	remoteIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}

	stream := wireproto.NewStream(conn)
	if err := httpcodec.ServeSecure(stream); err != nil {
		s.log.Debugf("webserver: secure handshake with %s failed: %v", remoteIP, err)
		return
	}

	for {
		req, err := httpcodec.ReadRequest(stream)
		if err != nil {
			return
		}

		if req.Method == "OPTIONS" {
			if err := httpcodec.WriteOptions(stream, req); err != nil {
				return
			}
			continue
		}

		resp := s.route(req, remoteIP)
		if err := httpcodec.WriteResponse(stream, req, *resp); err != nil {
			return
		}
	}
}

func (s *Server) route(req *httpcodec.Request, remoteIP string) *httpcodec.Response {
	if fname, ok := s.lookupPublic(req.Path); ok {
		return s.servePublic(fname, req)
	}
	if s.handler != nil {
		if resp := s.handler(req, remoteIP); resp != nil {
			return resp
		}
	}
	return &httpcodec.Response{
		Code:    404,
		Message: "NOT_FOUND",
		Headers: httpcodec.NewHeader(),
		Body:    []byte(`{"message":"not found"}`),
		Mime:    "application/json",
	}
}
