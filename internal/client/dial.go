package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/gorilla/websocket"

	"wordclash/internal/transport/tcp"
	"wordclash/internal/transport/ws"
)

// Dial connects to a server. Addresses starting with ws:// or wss:// use the
// WebSocket endpoint; anything else is a host:port for the TCP protocol.
func Dial(ctx context.Context, addr string, logger *slog.Logger) (Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		c, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return ws.NewClientConn(c, logger), nil
	}

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return tcp.NewConn(c, logger), nil
}
