// Package httpserver provides the HTTP server for the device API.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// Server wraps http.Server with lifecycle management.
type Server struct {
	srv *http.Server
}

// New creates a server on addr serving handler.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts the server. Blocks until shutdown or error.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ListenAndServeTLS starts the server with TLS.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	err := s.srv.ListenAndServeTLS(certFile, keyFile)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}
