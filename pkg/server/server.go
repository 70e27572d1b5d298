package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Default timeouts.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

// Config holds the http.Server timeouts. Zero values use the defaults;
// ReadTimeout and WriteTimeout stay unlimited when zero since agent turns
// may run long.
type Config struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}

// Server is an HTTP server with graceful shutdown.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Server struct {
	name   string
	cfg    Config
	logger *slog.Logger

	httpServer *http.Server
	errCh      chan error

	mu           sync.RWMutex
	running      bool
	addr         string
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a server for h. Name appears in log lines.
func New(name string, h http.Handler, cfg Config) *Server {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "server", "server", name)
	return &Server{
		name:   name,
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Handler:           Chain(h),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		errCh: make(chan error, 1),
	}
}

// Chain wraps h in the standard middleware.
func Chain(h http.Handler) http.Handler {
	h = LoggingMiddleware(h)
	h = RequestIDMiddleware(h)
	return RecoveryMiddleware(h)
}

// Start serves on ln in the background.
func (s *Server) Start(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server %s is already running", s.name)
	}
	s.running = true
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("server listening", "address", s.addr)
	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed", "error", err)
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Serve serves on ln until ctx is done or the server fails, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Start(ln); err != nil {
		return err
	}
	select {
	case err, ok := <-s.errCh:
		if ok {
			_ = s.Shutdown(context.Background())
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Later calls return the result of the first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.running
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("shutting down server", "timeout", s.cfg.ShutdownTimeout.String())
		sctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(sctx); err != nil {
			s.shutdownErr = fmt.Errorf("server %s shutdown: %w", s.name, err)
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	})
	return s.shutdownErr
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
