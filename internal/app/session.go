package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

// recordTimeout bounds a single match history write
const recordTimeout = 5 * time.Second

// Sender delivers envelopes to one connection. Send must not block on the network.
type Sender interface {
	Send(env protocol.Envelope) error
}

// MatchRecorder persists finished matches
type MatchRecorder interface {
	RecordMatch(ctx context.Context, result domain.MatchResult) error
}

// outbound is an envelope bound to the recipients resolved when it was queued
type outbound struct {
	env protocol.Envelope
	to  []recipient
}

type recipient struct {
	playerID string
	conn     Sender
}

// RoomSession wraps a room with its lock, its member connections and an
// ordered broadcaster. Every room mutation happens under mu, and events are
// queued while mu is held, so members observe events in mutation order.
type RoomSession struct {
	room    *domain.Room
	mu      sync.Mutex
	members map[string]Sender // playerID -> connection
	closed  bool

	deps   sessionDeps
	logger *slog.Logger

	countdownStop chan struct{}

	events    chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// sessionDeps are the collaborators shared by every session of a registry
type sessionDeps struct {
	clock     func() time.Time
	newTicker TickerFactory
	recorder  MatchRecorder
	newID     func() string
}

func newRoomSession(room *domain.Room, deps sessionDeps, logger *slog.Logger) *RoomSession {
	s := &RoomSession{
		room:    room,
		members: make(map[string]Sender),
		deps:    deps,
		logger:  logger.With("roomID", room.ID),
		events:  make(chan outbound, 100),
		done:    make(chan struct{}),
	}

	go s.eventLoop()

	return s
}

// ID returns the room id
func (s *RoomSession) ID() string {
	return s.room.ID
}

// CreatedAt returns when the room was created
func (s *RoomSession) CreatedAt() time.Time {
	return s.room.CreatedAt
}

// Snapshot returns a deep copy of the room
func (s *RoomSession) Snapshot() domain.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room.Snapshot()
}

// PlayerCount returns the number of players in the room
func (s *RoomSession) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.room.Players)
}

// HasMember reports whether the player is in the room
func (s *RoomSession) HasMember(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[playerID]
	return ok
}

// join adds a player and replies to it with replyType before the room hears
// about the newcomer
func (s *RoomSession) join(p *domain.Player, conn Sender, replyType protocol.MessageType) (domain.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	if _, ok := s.members[p.ID]; ok {
		return domain.RoomSnapshot{}, domain.ErrAlreadyInRoom
	}
	if !s.room.AddPlayer(p) {
		if s.room.State.IsStarted() {
			return domain.RoomSnapshot{}, domain.ErrGameAlreadyStarted
		}
		return domain.RoomSnapshot{}, domain.ErrRoomFull
	}
	s.members[p.ID] = conn

	// Second player in: the host may start
	if s.room.IsFull() && s.room.State == domain.StateWaitingForPlayers {
		if err := s.room.Transition(domain.StateWaitingForHost); err != nil {
			s.logger.Error("failed to mark room ready", "error", err)
		}
	}

	snap := s.room.Snapshot()
	s.queueTo(p.ID, protocol.NewEnvelope(replyType, p.ID, s.room.ID, protocol.RoomPayload{Room: snap}))
	s.queueOthers(p.ID, protocol.NewEnvelope(protocol.MsgPlayerJoin, p.ID, s.room.ID, protocol.PlayerPayload{Player: p.Snapshot()}))
	s.queueAll(protocol.NewEnvelope(protocol.MsgRoomUpdate, "", s.room.ID, protocol.RoomPayload{Room: snap}))

	s.logger.Info("player joined", "playerID", p.ID, "players", len(s.room.Players))

	return snap, nil
}

// leave removes a player. disconnected marks a lost connection rather than a
// LEAVE_ROOM request. It reports whether the room is now empty; an empty
// session accepts no further members.
func (s *RoomSession) leave(playerID string, disconnected bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true, domain.ErrRoomNotFound
	}
	player, err := s.room.GetPlayer(playerID)
	if err != nil {
		return false, domain.ErrNotInRoom
	}
	lost := player.Snapshot()
	stateBefore := s.room.State

	if !disconnected {
		s.queueTo(playerID, protocol.NewEnvelope(protocol.MsgLeaveRoom, playerID, s.room.ID, nil))
	}

	s.room.RemovePlayer(playerID)
	delete(s.members, playerID)

	var winnerID string
	switch stateBefore {
	case domain.StateGameStarted:
		if opponent, ok := s.room.Opponent(playerID); ok {
			winnerID = opponent.ID
			if err := s.room.End(winnerID); err != nil {
				s.logger.Error("failed to end game", "error", err)
			}
		}
	case domain.StateWaitingForHost, domain.StateCountdown:
		s.stopCountdownLocked()
		s.room.ResetForRematch()
	}

	if disconnected {
		s.queueAll(protocol.NewEnvelope(protocol.MsgPlayerDisconnected, "", s.room.ID,
			protocol.DisconnectPayload{PlayerID: playerID, WinnerID: winnerID}))
	} else {
		s.queueAll(protocol.NewEnvelope(protocol.MsgPlayerLeave, playerID, s.room.ID, protocol.PlayerPayload{Player: lost}))
		if winnerID != "" {
			s.queueAll(protocol.NewEnvelope(protocol.MsgGameOver, "", s.room.ID,
				protocol.GameOverPayload{WinnerID: winnerID, Reason: domain.EndReasonForfeit}))
		}
	}

	if winnerID != "" {
		reason := domain.EndReasonForfeit
		if disconnected {
			reason = domain.EndReasonDisconnect
		}
		s.recordLocked(lost, reason)
	}

	s.logger.Info("player left", "playerID", playerID, "disconnected", disconnected, "state", s.room.State)

	if s.room.IsEmpty() {
		s.closed = true
		s.stopCountdownLocked()
		return true, nil
	}

	s.queueAll(protocol.NewEnvelope(protocol.MsgRoomUpdate, "", s.room.ID, protocol.RoomPayload{Room: s.room.Snapshot()}))
	return false, nil
}

// StartGame starts the countdown (host only)
func (s *RoomSession) StartGame(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[playerID]; !ok || s.closed {
		return domain.ErrNotInRoom
	}
	if err := s.room.StartCountdown(playerID, s.deps.clock()); err != nil {
		return err
	}

	s.queueAll(protocol.NewEnvelope(protocol.MsgCountdownStart, "", s.room.ID, protocol.CountPayload{Count: s.room.Countdown}))
	s.queueAll(protocol.NewEnvelope(protocol.MsgRoomUpdate, "", s.room.ID, protocol.RoomPayload{Room: s.room.Snapshot()}))
	s.startCountdownLocked()

	s.logger.Info("countdown started", "seconds", s.room.Countdown)
	return nil
}

// WordComplete applies a completed word for the player
func (s *RoomSession) WordComplete(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[playerID]; !ok || s.closed {
		return domain.ErrNotInRoom
	}

	var lost domain.PlayerSnapshot
	if opponent, ok := s.room.Opponent(playerID); ok {
		lost = opponent.Snapshot()
	}

	res, err := s.room.ApplyWordComplete(playerID)
	if err != nil {
		return err
	}

	s.queueOthers(playerID, protocol.NewEnvelope(protocol.MsgPlayerTyped, playerID, s.room.ID,
		protocol.TypedPayload{Event: protocol.TypedWordComplete}))
	s.queueAll(protocol.NewEnvelope(protocol.MsgGameStateUpdate, "", s.room.ID, protocol.RoomPayload{Room: s.room.Snapshot()}))

	if res.Ended {
		s.queueAll(protocol.NewEnvelope(protocol.MsgGameOver, "", s.room.ID,
			protocol.GameOverPayload{WinnerID: res.WinnerID, Reason: domain.EndReasonKnockout}))

		if p, err := s.room.GetPlayer(lost.ID); err == nil {
			lost = p.Snapshot()
		}
		s.recordLocked(lost, domain.EndReasonKnockout)
		s.logger.Info("game over", "winnerID", res.WinnerID)
	}

	return nil
}

// Progress relays a player's typed-character index to the opponent
func (s *RoomSession) Progress(playerID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[playerID]; !ok || s.closed {
		return domain.ErrNotInRoom
	}

	clamped, err := s.room.SetProgress(playerID, index)
	if err != nil {
		return err
	}

	s.queueOthers(playerID, protocol.NewEnvelope(protocol.MsgPlayerProgress, playerID, s.room.ID, protocol.IndexPayload{Index: clamped}))
	return nil
}

// Reset brings an ended room back for a rematch
func (s *RoomSession) Reset() (domain.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	if s.room.State != domain.StateGameEnded {
		return domain.RoomSnapshot{}, domain.ErrInvalidState
	}

	s.room.ResetForRematch()
	snap := s.room.Snapshot()
	s.queueAll(protocol.NewEnvelope(protocol.MsgRoomUpdate, "", s.room.ID, protocol.RoomPayload{Room: snap}))

	s.logger.Info("room reset for rematch", "state", snap.State)
	return snap, nil
}

// recordLocked stores the finished match in the background (caller must hold lock)
func (s *RoomSession) recordLocked(lost domain.PlayerSnapshot, reason domain.EndReason) {
	if s.deps.recorder == nil {
		return
	}

	result := domain.NewMatchResult(s.deps.newID(), s.room.Snapshot(), lost, reason, s.deps.clock())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.deps.recorder.RecordMatch(ctx, result); err != nil {
			s.logger.Warn("failed to record match", "matchID", result.ID, "error", err)
		}
	}()
}

// queueAll queues an envelope for every member (caller must hold lock)
func (s *RoomSession) queueAll(env protocol.Envelope) {
	s.queue(env, s.recipientsLocked(""))
}

// queueOthers queues an envelope for every member except playerID (caller must hold lock)
func (s *RoomSession) queueOthers(playerID string, env protocol.Envelope) {
	s.queue(env, s.recipientsLocked(playerID))
}

// queueTo queues an envelope for one member (caller must hold lock)
func (s *RoomSession) queueTo(playerID string, env protocol.Envelope) {
	conn, ok := s.members[playerID]
	if !ok {
		return
	}
	s.queue(env, []recipient{{playerID: playerID, conn: conn}})
}

// recipientsLocked lists member connections in player order, skipping exclude
func (s *RoomSession) recipientsLocked(exclude string) []recipient {
	to := make([]recipient, 0, len(s.members))
	for _, p := range s.room.Players {
		if p.ID == exclude {
			continue
		}
		if conn, ok := s.members[p.ID]; ok {
			to = append(to, recipient{playerID: p.ID, conn: conn})
		}
	}
	return to
}

// queue adds an event to the broadcast queue. It blocks while the queue is
// full so that no event is lost or reordered.
func (s *RoomSession) queue(env protocol.Envelope, to []recipient) {
	if len(to) == 0 {
		return
	}
	select {
	case s.events <- outbound{env: env, to: to}:
	case <-s.done:
	}
}

// eventLoop delivers queued events in order. Events already queued when the
// session closes are still delivered.
func (s *RoomSession) eventLoop() {
	for {
		select {
		case ev := <-s.events:
			s.deliver(ev)
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					s.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *RoomSession) deliver(ev outbound) {
	for _, r := range ev.to {
		if err := r.conn.Send(ev.env); err != nil {
			s.logger.Debug("failed to send to client", "playerID", r.playerID, "type", ev.env.Type, "error", err)
		}
	}
}

// Close shuts down the session. Member connections stay open; they belong to
// their handlers.
func (s *RoomSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopCountdownLocked()
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.done)
	})
}
