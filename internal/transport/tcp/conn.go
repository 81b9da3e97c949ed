package tcp

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"wordclash/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Size of the send channel buffer
	sendBufferSize = 256
)

// ErrClosed is returned when sending on a closed connection
var ErrClosed = errors.New("connection closed")

// Conn carries newline-delimited JSON envelopes over a stream connection.
// Writes go through a buffered queue drained by one writer goroutine.
type Conn struct {
	conn   net.Conn
	dec    *protocol.Decoder
	enc    *protocol.Encoder
	send   chan protocol.Envelope
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// NewConn wraps c and starts its writer
func NewConn(c net.Conn, logger *slog.Logger) *Conn {
	conn := &Conn{
		conn:   c,
		dec:    protocol.NewDecoder(c),
		enc:    protocol.NewEncoder(c),
		send:   make(chan protocol.Envelope, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}

	go conn.writePump()

	return conn
}

// ReadEnvelope blocks until the next frame arrives
func (c *Conn) ReadEnvelope() (protocol.Envelope, error) {
	return c.dec.Decode()
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
		c.logger.Warn("send buffer full, message dropped", "remote", c.RemoteAddr(), "type", env.Type)
		return nil
	}
}

// Close closes the connection. Queued envelopes that were not written yet are discarded.
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

// writePump writes queued envelopes until the connection closes
func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.enc.Encode(env); err != nil {
				if errors.Is(err, protocol.ErrMalformed) {
					c.logger.Error("refusing to send invalid envelope", "type", env.Type, "error", err)
					continue
				}
				c.logger.Debug("tcp write error", "remote", c.RemoteAddr(), "error", err)
				c.Close()
				return
			}
		}
	}
}
