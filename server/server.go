package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"coleman/config"
	"coleman/storage"
)

// Server accepts TCP connections and spawns a goroutine per client.
// The protocol is newline-delimited JSON (see proto.go); the engine
// itself never sees a wire type.
type Server struct {
	cfg      *config.Config
	mgr      *storage.Manager
	logger   *zap.Logger
	mu       sync.Mutex // protects listener
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// New creates a server for the given configuration and manager.
func New(cfg *config.Config, mgr *storage.Manager, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		mgr:    mgr,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// ListenAndServe starts accepting connections. It blocks until
// Shutdown is called or an unrecoverable error occurs.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.logger.Warn("accept error", zap.Error(err))
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newConnection(conn, s.mgr, s.logger).handle()
		}()
	}
}

// Addr returns the listener's network address, or nil if not yet
// listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Addr()
	}
	return nil
}

// Shutdown stops accepting new connections and waits for existing
// ones to finish, respecting the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.quit)
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
