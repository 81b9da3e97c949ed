package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

const (
	// maxPlayerIDLength bounds client-chosen player ids
	maxPlayerIDLength = 64

	// maxNameLength bounds display names
	maxNameLength = 32
)

// Conn is one client connection carrying envelopes. ReadEnvelope blocks until
// a frame arrives; a frame that fails to decode is reported as
// protocol.ErrMalformed with the stream positioned at the next frame.
type Conn interface {
	Sender
	ReadEnvelope() (protocol.Envelope, error)
	Close() error
	RemoteAddr() string
}

// RateLimit configures the inbound message limiter of a connection
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// ConnHandler serves one connection: it reads envelopes one at a time and
// dispatches them against the registry
type ConnHandler struct {
	conn     Conn
	registry *Registry
	limiter  *rate.Limiter
	logger   *slog.Logger

	playerID   string
	roomID     string
	identified bool
}

// NewConnHandler creates a handler for conn. The player id is assigned by the
// server until the client supplies its own on CREATE_ROOM or JOIN_ROOM.
func NewConnHandler(conn Conn, registry *Registry, limit RateLimit, logger *slog.Logger) *ConnHandler {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if limit.PerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(limit.PerSecond), limit.Burst)
	}

	return &ConnHandler{
		conn:     conn,
		registry: registry,
		limiter:  limiter,
		logger:   logger.With("remote", conn.RemoteAddr()),
		playerID: uuid.NewString(),
	}
}

// PlayerID returns the id the connection plays under
func (h *ConnHandler) PlayerID() string {
	return h.playerID
}

// Serve runs the read loop until the connection fails, ctx is cancelled or
// the client sends a second consecutive malformed frame. On exit the player
// leaves its room as a disconnect and the connection is closed.
func (h *ConnHandler) Serve(ctx context.Context) error {
	defer h.cleanup()

	stop := context.AfterFunc(ctx, func() {
		h.conn.Close()
	})
	defer stop()

	malformed := false
	for {
		env, err := h.conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				if malformed {
					return fmt.Errorf("repeated malformed frames: %w", err)
				}
				malformed = true
				h.logger.Warn("skipping malformed frame", "error", err)
				continue
			}
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		malformed = false

		if !h.limiter.Allow() {
			h.logger.Warn("rate limit exceeded, dropping message", "type", env.Type, "playerID", h.playerID)
			// Progress updates are superseded by the next one
			if env.Type != protocol.MsgPlayerProgress {
				h.reject(env.Type, protocol.RejectRateLimited, "rate limit exceeded")
			}
			continue
		}

		h.dispatch(env)
	}
}

func (h *ConnHandler) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgCreateRoom:
		h.handleCreateRoom(env)
	case protocol.MsgJoinRoom:
		h.handleJoinRoom(env)
	case protocol.MsgLeaveRoom:
		h.handleLeaveRoom(env)
	case protocol.MsgStartGame:
		h.handleStartGame(env)
	case protocol.MsgPlayerTyped:
		h.handlePlayerTyped(env)
	case protocol.MsgPlayerProgress:
		h.handlePlayerProgress(env)
	case protocol.MsgRoomList:
		h.handleRoomList()
	default:
		h.reject(env.Type, protocol.RejectInvalidMessage, fmt.Sprintf("%s is not a client message", env.Type))
	}
}

// handleCreateRoom handles CREATE_ROOM
func (h *ConnHandler) handleCreateRoom(env protocol.Envelope) {
	if h.roomID != "" {
		h.rejectErr(env.Type, domain.ErrAlreadyInRoom)
		return
	}

	var roomName string
	var identity domain.PlayerSnapshot
	switch p := env.Payload.(type) {
	case protocol.PlayerPayload:
		identity = p.Player
	case protocol.RoomPayload:
		roomName = p.Room.Name
		if len(p.Room.Players) > 0 {
			identity = p.Room.Players[0]
		}
	}

	player, err := h.newPlayer(env.SenderID, identity)
	if err != nil {
		h.rejectErr(env.Type, err)
		return
	}

	session, err := h.registry.CreateRoom(truncate(roomName, maxNameLength), player, h.conn)
	if err != nil {
		h.rejectErr(env.Type, err)
		return
	}
	h.roomID = session.ID()
	h.identified = true
}

// handleJoinRoom handles JOIN_ROOM
func (h *ConnHandler) handleJoinRoom(env protocol.Envelope) {
	if h.roomID != "" {
		h.rejectErr(env.Type, domain.ErrAlreadyInRoom)
		return
	}
	if env.RoomID == "" {
		h.rejectErr(env.Type, domain.ErrRoomNotFound)
		return
	}

	var identity domain.PlayerSnapshot
	if p, ok := env.Payload.(protocol.PlayerPayload); ok {
		identity = p.Player
	}

	player, err := h.newPlayer(env.SenderID, identity)
	if err != nil {
		h.rejectErr(env.Type, err)
		return
	}

	if _, err := h.registry.JoinRoom(env.RoomID, player, h.conn); err != nil {
		h.rejectErr(env.Type, err)
		return
	}
	h.roomID = env.RoomID
	h.identified = true
}

// handleLeaveRoom handles LEAVE_ROOM. The connection stays open.
func (h *ConnHandler) handleLeaveRoom(env protocol.Envelope) {
	if h.roomID == "" {
		h.rejectErr(env.Type, domain.ErrNotInRoom)
		return
	}

	roomID := h.roomID
	h.roomID = ""
	if err := h.registry.LeaveRoom(roomID, h.playerID, false); err != nil {
		h.logger.Debug("leave on vanished room", "roomID", roomID, "error", err)
		h.send(protocol.NewEnvelope(protocol.MsgLeaveRoom, h.playerID, roomID, nil))
	}
}

// handleStartGame handles START_GAME
func (h *ConnHandler) handleStartGame(env protocol.Envelope) {
	session, err := h.currentRoom()
	if err != nil {
		h.rejectErr(env.Type, err)
		return
	}
	if err := session.StartGame(h.playerID); err != nil {
		h.rejectErr(env.Type, err)
	}
}

// handlePlayerTyped handles PLAYER_TYPED
func (h *ConnHandler) handlePlayerTyped(env protocol.Envelope) {
	session, err := h.currentRoom()
	if err != nil {
		h.rejectErr(env.Type, err)
		return
	}
	if err := session.WordComplete(h.playerID); err != nil {
		h.rejectErr(env.Type, err)
	}
}

// handlePlayerProgress handles PLAYER_PROGRESS. Progress is cosmetic, so
// failures are only logged.
func (h *ConnHandler) handlePlayerProgress(env protocol.Envelope) {
	session, err := h.currentRoom()
	if err != nil {
		h.logger.Debug("progress outside a room", "playerID", h.playerID)
		return
	}

	idx, _ := env.Payload.(protocol.IndexPayload)
	if err := session.Progress(h.playerID, idx.Index); err != nil {
		h.logger.Debug("progress ignored", "playerID", h.playerID, "error", err)
	}
}

// handleRoomList replies with the lobby listing
func (h *ConnHandler) handleRoomList() {
	h.send(protocol.NewEnvelope(protocol.MsgRoomList, "", "", protocol.RoomListPayload{Rooms: h.registry.ListRooms()}))
}

// currentRoom returns the session of the room the connection is in. A room
// that vanished since the last request clears the connection's membership.
func (h *ConnHandler) currentRoom() (*RoomSession, error) {
	if h.roomID == "" {
		return nil, domain.ErrNotInRoom
	}
	session, err := h.registry.Get(h.roomID)
	if err != nil {
		h.roomID = ""
		return nil, domain.ErrNotInRoom
	}
	return session, nil
}

// newPlayer builds the connection's player from the client identity. A
// client-chosen id is adopted while the connection has not played yet.
func (h *ConnHandler) newPlayer(senderID string, identity domain.PlayerSnapshot) (*domain.Player, error) {
	if identity.Name == "" {
		return nil, domain.ErrEmptyName
	}
	if !h.identified && senderID != "" && len(senderID) <= maxPlayerIDLength {
		h.playerID = senderID
	}
	return domain.NewPlayer(h.playerID, truncate(identity.Name, maxNameLength), identity.CharacterID), nil
}

// cleanup removes the player from its room as a disconnect and closes the connection
func (h *ConnHandler) cleanup() {
	if h.roomID != "" {
		if err := h.registry.LeaveRoom(h.roomID, h.playerID, true); err != nil {
			h.logger.Debug("disconnect on vanished room", "roomID", h.roomID, "error", err)
		}
		h.roomID = ""
	}
	h.conn.Close()
	h.logger.Info("connection closed", "playerID", h.playerID)
}

func (h *ConnHandler) send(env protocol.Envelope) {
	if err := h.conn.Send(env); err != nil {
		h.logger.Debug("failed to send to client", "playerID", h.playerID, "error", err)
	}
}

// rejectErr maps a domain error to a rejection code
func (h *ConnHandler) rejectErr(msgType protocol.MessageType, err error) {
	code := RejectionCode(err)
	if code == protocol.RejectInternalError {
		h.logger.Error("request failed", "type", msgType, "playerID", h.playerID, "error", err)
	}
	h.reject(msgType, code, err.Error())
}

// reject sends a rejection to the requester only
func (h *ConnHandler) reject(msgType protocol.MessageType, code, message string) {
	env := protocol.NewEnvelope(msgType, h.playerID, h.roomID, protocol.RejectionPayload{Code: code, Message: message})
	if env.Validate() != nil {
		// Server-to-client types carry no rejection variant
		h.logger.Warn("dropping unexpected message", "type", msgType, "code", code)
		return
	}
	h.send(env)
}

// RejectionCode maps a domain error to its wire rejection code
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return protocol.RejectRoomNotFound
	case errors.Is(err, domain.ErrRoomFull):
		return protocol.RejectRoomFull
	case errors.Is(err, domain.ErrGameAlreadyStarted):
		return protocol.RejectAlreadyStarted
	case errors.Is(err, domain.ErrNotHost):
		return protocol.RejectNotHost
	case errors.Is(err, domain.ErrNotEnoughPlayers):
		return protocol.RejectNotEnoughPlayers
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrPlayerNotAlive):
		return protocol.RejectInvalidState
	case errors.Is(err, domain.ErrNotInRoom), errors.Is(err, domain.ErrPlayerNotFound):
		return protocol.RejectNotInRoom
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return protocol.RejectAlreadyInRoom
	case errors.Is(err, domain.ErrEmptyName):
		return protocol.RejectInvalidMessage
	default:
		return protocol.RejectInternalError
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
