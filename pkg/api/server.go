package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/s3journal/internal/logger"
	"github.com/marmos91/s3journal/pkg/journal"
)

// Server runs the admin API over HTTP with graceful shutdown.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer creates a stopped admin server bound to addr.
func NewServer(addr string, j journal.Journal) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(j),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving. It returns once the listener stops; a clean
// shutdown returns nil.
func (s *Server) Start() error {
	logger.Info("Admin API listening", "addr", s.server.Addr)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting up to the context deadline for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}
