package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"wordclash/internal/app"
)

// Server accepts game connections and runs one handler per connection
type Server struct {
	addr     string
	registry *app.Registry
	limit    app.RateLimit
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a TCP game server
func NewServer(addr string, registry *app.Registry, limit app.RateLimit, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		registry: registry,
		limit:    limit,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown. It returns nil after a shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("tcp server is not listening")
	}

	s.logger.Info("tcp server starting", "addr", ln.Addr().String())

	for {
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go s.handle(c)
	}
}

// ListenAndServe binds the socket and serves until Shutdown
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) handle(c net.Conn) {
	defer s.wg.Done()

	conn := NewConn(c, s.logger)
	handler := app.NewConnHandler(conn, s.registry, s.limit, s.logger)

	s.logger.Debug("tcp client connected", "remote", conn.RemoteAddr())
	if err := handler.Serve(s.ctx); err != nil {
		s.logger.Warn("connection ended with error", "remote", conn.RemoteAddr(), "error", err)
	}
}

// Shutdown stops accepting, closes every connection and waits for the
// handlers to finish or ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

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
