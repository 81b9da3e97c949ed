package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

const eventBufferSize = 128

// Sender delivers envelopes to the server
type Sender interface {
	Send(env protocol.Envelope) error
}

// Conn is a client connection to the server
type Conn interface {
	Sender
	ReadEnvelope() (protocol.Envelope, error)
	Close() error
}

// Identity supplies the local player's display name and character
type Identity interface {
	DisplayName() string
	CharacterID() string
}

// StaticIdentity is an Identity with fixed values
type StaticIdentity struct {
	Name      string
	Character string
}

func (i StaticIdentity) DisplayName() string { return i.Name }
func (i StaticIdentity) CharacterID() string { return i.Character }

// State is the local mirror of the match
type State struct {
	Phase            Phase
	PlayerID         string
	RoomID           string
	RoomName         string
	HostID           string
	Own              domain.PlayerSnapshot
	Opponent         domain.PlayerSnapshot
	HasOpponent      bool
	OpponentProgress int
	CurrentWord      string
	Countdown        int
	WinnerID         string
	Version          uint64
	Rooms            []domain.RoomSnapshot
}

// Coordinator reconciles server broadcasts into local match state and turns
// local input into outgoing envelopes. Health and word counts only ever come
// from room snapshots; progress hints are cosmetic.
type Coordinator struct {
	sender   Sender
	identity Identity
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	synced       bool // a snapshot of the current room was applied
	lastProgress int  // highest index sent for the current word

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewCoordinator creates a coordinator for a connected client. The player id
// is generated locally and adopted by the server.
func NewCoordinator(sender Sender, identity Identity, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sender:   sender,
		identity: identity,
		logger:   logger,
		state: State{
			Phase:    PhaseLobby,
			PlayerID: uuid.NewString(),
		},
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// Events returns the event stream. Consumers must keep draining it; the read
// loop blocks while the buffer is full.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// State returns a copy of the local mirror
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Rooms = slices.Clone(c.state.Rooms)
	return s
}

// Close stops event delivery
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// CreateRoom asks the server for a new room hosted by the local player
func (c *Coordinator) CreateRoom(name string) error {
	c.mu.Lock()
	if c.state.RoomID != "" {
		c.mu.Unlock()
		return domain.ErrAlreadyInRoom
	}

	var payload protocol.Payload = protocol.PlayerPayload{Player: c.selfLocked()}
	if name != "" {
		payload = protocol.RoomPayload{Room: domain.RoomSnapshot{
			Name:    name,
			Players: []domain.PlayerSnapshot{c.selfLocked()},
		}}
	}
	env := protocol.NewEnvelope(protocol.MsgCreateRoom, c.state.PlayerID, "", payload)
	c.mu.Unlock()

	return c.sender.Send(env)
}

// JoinRoom asks to join an existing room
func (c *Coordinator) JoinRoom(roomID string) error {
	c.mu.Lock()
	if c.state.RoomID != "" {
		c.mu.Unlock()
		return domain.ErrAlreadyInRoom
	}
	env := protocol.NewEnvelope(protocol.MsgJoinRoom, c.state.PlayerID, roomID, protocol.PlayerPayload{Player: c.selfLocked()})
	c.mu.Unlock()

	return c.sender.Send(env)
}

// LeaveRoom leaves the current room. Local state is torn down when the
// server acknowledges.
func (c *Coordinator) LeaveRoom() error {
	return c.sendInRoom(protocol.MsgLeaveRoom, nil)
}

// StartGame asks the server to start the countdown
func (c *Coordinator) StartGame() error {
	return c.sendInRoom(protocol.MsgStartGame, nil)
}

// RequestRooms asks for the lobby listing
func (c *Coordinator) RequestRooms() error {
	c.mu.Lock()
	env := protocol.NewEnvelope(protocol.MsgRoomList, c.state.PlayerID, "", nil)
	c.mu.Unlock()
	return c.sender.Send(env)
}

// WordCompleted reports that the local player finished the current word
func (c *Coordinator) WordCompleted() error {
	c.mu.Lock()
	if c.state.Phase != PhasePlaying {
		c.mu.Unlock()
		return domain.ErrInvalidState
	}
	c.lastProgress = 0
	env := protocol.NewEnvelope(protocol.MsgPlayerTyped, c.state.PlayerID, c.state.RoomID,
		protocol.TypedPayload{Event: protocol.TypedWordComplete})
	c.mu.Unlock()

	return c.sender.Send(env)
}

// Progress reports the local typing position. Only an index past the last
// one sent for the current word goes out.
func (c *Coordinator) Progress(index int) error {
	c.mu.Lock()
	if c.state.Phase != PhasePlaying {
		c.mu.Unlock()
		return domain.ErrInvalidState
	}
	if index <= c.lastProgress {
		c.mu.Unlock()
		return nil
	}
	c.lastProgress = index
	env := protocol.NewEnvelope(protocol.MsgPlayerProgress, c.state.PlayerID, c.state.RoomID, protocol.IndexPayload{Index: index})
	c.mu.Unlock()

	return c.sender.Send(env)
}

func (c *Coordinator) sendInRoom(msgType protocol.MessageType, payload protocol.Payload) error {
	c.mu.Lock()
	if c.state.RoomID == "" {
		c.mu.Unlock()
		return domain.ErrNotInRoom
	}
	env := protocol.NewEnvelope(msgType, c.state.PlayerID, c.state.RoomID, payload)
	c.mu.Unlock()

	return c.sender.Send(env)
}

func (c *Coordinator) selfLocked() domain.PlayerSnapshot {
	return domain.PlayerSnapshot{
		ID:          c.state.PlayerID,
		Name:        c.identity.DisplayName(),
		CharacterID: c.identity.CharacterID(),
	}
}

// Run applies envelopes read from conn until the connection ends or ctx is
// cancelled. One malformed envelope is skipped; a second in a row ends the
// session like any other read failure.
func (c *Coordinator) Run(ctx context.Context, conn Conn) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	malformed := false
	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) && !malformed {
				malformed = true
				c.logger.Warn("skipping malformed envelope", "error", err)
				continue
			}

			c.ConnectionLost(err)
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		malformed = false
		c.Handle(env)
	}
}

// ConnectionLost tears down all match state and reports the disconnect
func (c *Coordinator) ConnectionLost(err error) {
	c.mu.Lock()
	c.clearRoomLocked()
	events := c.setPhaseLocked(PhaseOffline)
	c.mu.Unlock()

	c.emit(append(events, Disconnected{Err: err})...)
}

// Handle applies one inbound envelope to the local mirror
func (c *Coordinator) Handle(env protocol.Envelope) {
	c.mu.Lock()
	events, replies := c.applyLocked(env)
	c.mu.Unlock()

	for _, reply := range replies {
		if err := c.sender.Send(reply); err != nil {
			c.logger.Warn("failed to send", "type", reply.Type, "error", err)
		}
	}
	c.emit(events...)
}

func (c *Coordinator) applyLocked(env protocol.Envelope) ([]Event, []protocol.Envelope) {
	if rej, ok := env.Payload.(protocol.RejectionPayload); ok {
		return []Event{Rejected{Request: string(env.Type), Code: rej.Code, Message: rej.Message}}, nil
	}

	switch env.Type {
	case protocol.MsgCreateRoom, protocol.MsgJoinRoom:
		p, ok := env.Payload.(protocol.RoomPayload)
		if !ok {
			return nil, nil
		}
		if env.SenderID != "" {
			c.state.PlayerID = env.SenderID
		}
		c.clearRoomLocked()
		c.state.RoomID = p.Room.ID
		return c.applySnapshotLocked(p.Room), nil

	case protocol.MsgRoomUpdate, protocol.MsgGameStateUpdate:
		p, ok := env.Payload.(protocol.RoomPayload)
		if !ok || !c.inRoomLocked(p.Room.ID) {
			return nil, nil
		}
		return c.applySnapshotLocked(p.Room), nil

	case protocol.MsgRoomList:
		p, ok := env.Payload.(protocol.RoomListPayload)
		if !ok {
			return nil, nil
		}
		c.state.Rooms = slices.Clone(p.Rooms)
		return []Event{RoomsListed{Rooms: slices.Clone(p.Rooms)}}, nil

	case protocol.MsgLeaveRoom:
		if !c.inRoomLocked(env.RoomID) {
			return nil, nil
		}
		c.clearRoomLocked()
		return c.setPhaseLocked(PhaseLobby), nil

	case protocol.MsgPlayerJoin:
		p, ok := env.Payload.(protocol.PlayerPayload)
		if !ok || !c.inRoomLocked(env.RoomID) || p.Player.ID == c.state.PlayerID {
			return nil, nil
		}
		return []Event{OpponentJoined{Player: p.Player}}, nil

	case protocol.MsgPlayerLeave:
		p, ok := env.Payload.(protocol.PlayerPayload)
		if !ok || !c.inRoomLocked(env.RoomID) || p.Player.ID == c.state.PlayerID {
			return nil, nil
		}
		c.state.Opponent = domain.PlayerSnapshot{}
		c.state.HasOpponent = false
		c.state.OpponentProgress = 0
		return []Event{OpponentLeft{PlayerID: p.Player.ID}}, nil

	case protocol.MsgPlayerDisconnected:
		return c.opponentDisconnectedLocked(env)

	case protocol.MsgCountdownStart, protocol.MsgCountdownUpdate:
		p, ok := env.Payload.(protocol.CountPayload)
		if !ok || !c.inRoomLocked(env.RoomID) {
			return nil, nil
		}
		c.state.Countdown = p.Count
		events := c.setPhaseLocked(PhaseCountdown)
		return append(events, CountdownTicked{Count: p.Count}), nil

	case protocol.MsgGameStart:
		p, ok := env.Payload.(protocol.WordPayload)
		if !ok || !c.inRoomLocked(env.RoomID) {
			return nil, nil
		}
		c.state.Countdown = 0
		c.state.WinnerID = ""
		events := c.setPhaseLocked(PhasePlaying)
		return append(events, c.setWordLocked(p.Word)...), nil

	case protocol.MsgPlayerProgress:
		p, ok := env.Payload.(protocol.IndexPayload)
		if !ok || !c.inRoomLocked(env.RoomID) || env.SenderID == c.state.PlayerID {
			return nil, nil
		}
		c.state.OpponentProgress = p.Index
		return []Event{OpponentProgressed{Index: p.Index}}, nil

	case protocol.MsgPlayerTyped:
		if !c.inRoomLocked(env.RoomID) || env.SenderID == c.state.PlayerID {
			return nil, nil
		}
		// Health moves with the GAME_STATE_UPDATE that follows
		return []Event{OpponentAttacked{PlayerID: env.SenderID}}, nil

	case protocol.MsgGameOver:
		p, ok := env.Payload.(protocol.GameOverPayload)
		if !ok || !c.inRoomLocked(env.RoomID) {
			return nil, nil
		}
		c.state.WinnerID = p.WinnerID
		events := c.setPhaseLocked(PhaseEnded)
		return append(events, MatchOver{
			WinnerID: p.WinnerID,
			Won:      p.WinnerID == c.state.PlayerID,
			Reason:   p.Reason,
		}), nil
	}

	return nil, nil
}

// opponentDisconnectedLocked ends the match, leaves the room and returns to
// the lobby
func (c *Coordinator) opponentDisconnectedLocked(env protocol.Envelope) ([]Event, []protocol.Envelope) {
	p, ok := env.Payload.(protocol.DisconnectPayload)
	if !ok || !c.inRoomLocked(env.RoomID) || p.PlayerID == c.state.PlayerID {
		return nil, nil
	}

	events := []Event{OpponentLeft{PlayerID: p.PlayerID, Disconnected: true}}
	if p.WinnerID != "" {
		events = append(events, MatchOver{
			WinnerID: p.WinnerID,
			Won:      p.WinnerID == c.state.PlayerID,
			Reason:   domain.EndReasonDisconnect,
		})
	}

	leave := protocol.NewEnvelope(protocol.MsgLeaveRoom, c.state.PlayerID, c.state.RoomID, nil)
	c.clearRoomLocked()
	events = append(events, c.setPhaseLocked(PhaseLobby)...)
	return events, []protocol.Envelope{leave}
}

// applySnapshotLocked overwrites the mirror from a room snapshot. Snapshots
// older than or equal to the last applied one are dropped.
func (c *Coordinator) applySnapshotLocked(room domain.RoomSnapshot) []Event {
	if c.synced && room.Version <= c.state.Version {
		c.logger.Debug("dropping stale snapshot", "version", room.Version, "applied", c.state.Version)
		return nil
	}
	c.synced = true

	prevOwn, prevOpp := c.state.Own.Health, c.state.Opponent.Health

	c.state.Version = room.Version
	c.state.RoomName = room.Name
	c.state.HostID = room.HostID
	c.state.WinnerID = room.WinnerID
	c.state.Countdown = room.Countdown
	c.state.Own, _ = room.Player(c.state.PlayerID)
	c.state.Opponent, c.state.HasOpponent = room.Opponent(c.state.PlayerID)
	c.state.OpponentProgress = c.state.Opponent.Progress

	events := []Event{RoomUpdated{Room: room}}
	events = append(events, c.setPhaseLocked(phaseOf(room.State))...)
	if room.CurrentWord != c.state.CurrentWord {
		events = append(events, c.setWordLocked(room.CurrentWord)...)
	}
	if c.state.Own.Health != prevOwn || c.state.Opponent.Health != prevOpp {
		events = append(events, HealthChanged{Own: c.state.Own.Health, Opponent: c.state.Opponent.Health})
	}
	return events
}

func (c *Coordinator) setWordLocked(word string) []Event {
	if word == c.state.CurrentWord {
		return nil
	}
	c.state.CurrentWord = word
	c.lastProgress = 0
	if word == "" {
		return nil
	}
	return []Event{WordChanged{Word: word}}
}

func (c *Coordinator) setPhaseLocked(phase Phase) []Event {
	if c.state.Phase == phase {
		return nil
	}
	from := c.state.Phase
	c.state.Phase = phase
	return []Event{PhaseChanged{From: from, To: phase}}
}

func (c *Coordinator) inRoomLocked(roomID string) bool {
	return c.state.RoomID != "" && c.state.RoomID == roomID
}

// clearRoomLocked forgets everything about the current room, keeping the
// phase, identity and lobby listing
func (c *Coordinator) clearRoomLocked() {
	c.state = State{
		Phase:    c.state.Phase,
		PlayerID: c.state.PlayerID,
		Rooms:    c.state.Rooms,
	}
	c.synced = false
	c.lastProgress = 0
}

func (c *Coordinator) emit(events ...Event) {
	for _, ev := range events {
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
