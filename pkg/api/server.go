package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ankisyncd/ankisyncd-go/internal/logger"
)

// Server is the sync server's HTTP frontend, grounded on the pack's API
// server shape (graceful Start/Stop over a plain net/http.Server).
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer wraps handler in a configured http.Server.
func NewServer(config Config, handler http.Handler) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start listens and blocks until ctx is cancelled or the server errors.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Infof("sync server listening on port %d", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("sync server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("sync server failed: %w", err)
	}
}

// Stop gracefully shuts the server down; safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("sync server shutdown error: %w", err)
			logger.Errorf("sync server shutdown error: %v", err)
		} else {
			logger.Info("sync server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int { return s.config.Port }
