package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"wordclash/internal/app"
	"wordclash/internal/config"
)

// Server serves the lobby API and the WebSocket endpoint
type Server struct {
	server   *http.Server
	registry *app.Registry
	history  MatchHistory
	config   *config.Config
	logger   *slog.Logger
}

// NewServer creates a new HTTP server. history may be nil when match
// history is disabled; wsHandler is mounted at /ws.
func NewServer(cfg *config.Config, registry *app.Registry, history MatchHistory, wsHandler http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		history:  history,
		config:   cfg,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux, wsHandler)

	s.server = &http.Server{
		Addr:        cfg.GetAddr(),
		Handler:     s.middleware(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, wsHandler http.Handler) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{roomId}", s.handleGetRoom)
	mux.HandleFunc("POST /api/rooms/{roomId}/reset", s.handleResetRoom)
	mux.HandleFunc("GET /api/matches", s.handleRecentMatches)

	if wsHandler != nil {
		mux.Handle("GET /ws", wsHandler)
	}
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// middleware wraps the handler with CORS headers and request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		// Health probes are noisy outside development
		if s.config.IsDevelopment() || !isProbeRequest(r.URL.Path) {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
			)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. Hijacked WebSocket connections
// are not tracked here; they close when the handler context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func isProbeRequest(path string) bool {
	return strings.HasPrefix(path, "/api/health")
}
