package ws

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wordclash/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Size of the send channel buffer
	sendBufferSize = 256
)

// ErrClosed is returned when sending on a closed connection
var ErrClosed = errors.New("connection closed")

// Conn carries one envelope per WebSocket text message
type Conn struct {
	conn      *websocket.Conn
	send      chan protocol.Envelope
	done      chan struct{}
	keepalive bool
	logger    *slog.Logger

	closeOnce sync.Once
}

// NewConn wraps a server-side connection. The server pings the peer and
// drops it when pongs stop arriving.
func NewConn(c *websocket.Conn, logger *slog.Logger) *Conn {
	return newConn(c, true, logger)
}

// NewClientConn wraps a client-side connection, which answers pings but
// never sends its own
func NewClientConn(c *websocket.Conn, logger *slog.Logger) *Conn {
	return newConn(c, false, logger)
}

func newConn(c *websocket.Conn, keepalive bool, logger *slog.Logger) *Conn {
	conn := &Conn{
		conn:      c,
		send:      make(chan protocol.Envelope, sendBufferSize),
		done:      make(chan struct{}),
		keepalive: keepalive,
		logger:    logger,
	}

	c.SetReadLimit(protocol.MaxFrameSize)
	if keepalive {
		c.SetReadDeadline(time.Now().Add(pongWait))
		c.SetPongHandler(func(string) error {
			c.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
	}

	go conn.writePump()

	return conn
}

// ReadEnvelope blocks until the next message arrives. A message that does
// not decode is reported as protocol.ErrMalformed; the next call reads the
// following message.
func (c *Conn) ReadEnvelope() (protocol.Envelope, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Envelope{}, io.EOF
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.logger.Debug("websocket read error", "error", err)
		}
		return protocol.Envelope{}, err
	}
	if c.keepalive {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if msgType != websocket.TextMessage {
		return protocol.Envelope{}, protocol.ErrMalformed
	}

	return protocol.Unmarshal(data)
}

// Send queues an envelope for the writer. A full queue drops the envelope.
func (c *Conn) Send(env protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "remote", c.RemoteAddr(), "type", env.Type)
		return nil
	}
}

// Close closes the connection
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// writePump pumps envelopes from the send channel to the WebSocket connection
func (c *Conn) writePump() {
	var pings <-chan time.Time
	if c.keepalive {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			data, err := protocol.Marshal(env)
			if err != nil {
				c.logger.Error("refusing to send invalid envelope", "type", env.Type, "error", err)
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-pings:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
