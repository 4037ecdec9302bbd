// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package httpserver runs an http.Handler on a TCP listener with the
// Start/Stop lifecycle the serve command drives.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Server serves one handler. The zero value is not usable; call New.
type Server struct {
	name    string
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
}

// New returns a stopped server for handler. name labels its log lines and
// errors ("api", "observability").
func New(name, addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{name: name, addr: addr, handler: handler, logger: logger.With("server", name)}
}

// Start binds the address and serves in the background. The returned
// channel yields at most one serve error and is closed when serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil, oops.Code("HTTP_ALREADY_RUNNING").With("server", s.name).Errorf("%s server already running", s.name)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("server", s.name).With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.listener, s.srv = ln, srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires. Stopping a server that
// is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return oops.With("server", s.name).With("operation", "shutdown").Wrap(err)
	}
	s.srv = nil
	s.logger.Info("stopped")
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
