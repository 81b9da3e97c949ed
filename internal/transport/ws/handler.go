package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"wordclash/internal/app"
)

// Handler upgrades HTTP requests to game connections
type Handler struct {
	ctx      context.Context
	registry *app.Registry
	limit    app.RateLimit
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler. Connections are closed when
// ctx is cancelled.
func NewHandler(ctx context.Context, registry *app.Registry, limit app.RateLimit, logger *slog.Logger) *Handler {
	return &Handler{
		ctx:      ctx,
		registry: registry,
		limit:    limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				// In production, you should validate the origin
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConn(c, h.logger)
	handler := app.NewConnHandler(conn, h.registry, h.limit, h.logger)

	h.logger.Info("websocket connected", "remote", conn.RemoteAddr(), "playerID", handler.PlayerID())

	if err := handler.Serve(h.ctx); err != nil {
		h.logger.Warn("websocket connection ended with error", "remote", conn.RemoteAddr(), "error", err)
	}
}
