package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

const testRoomID = "ROOM01"

var (
	me       = domain.PlayerSnapshot{ID: "me", Name: "Me", CharacterID: "knight", Health: 5, Alive: true}
	opponent = domain.PlayerSnapshot{ID: "op", Name: "Op", CharacterID: "mage", Health: 5, Alive: true}
)

type recordingSender struct {
	mu   sync.Mutex
	envs []protocol.Envelope
}

func (r *recordingSender) Send(env protocol.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recordingSender) sent() []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Envelope(nil), r.envs...)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	c := NewCoordinator(sender, StaticIdentity{Name: "Me", Character: "knight"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(c.Close)
	return c, sender
}

// drain returns every event emitted so far
func drain(c *Coordinator) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func snapshot(version uint64, state domain.RoomState, word string, players ...domain.PlayerSnapshot) domain.RoomSnapshot {
	return domain.RoomSnapshot{
		ID:          testRoomID,
		Name:        "duel",
		HostID:      "op",
		State:       state,
		Players:     players,
		MaxPlayers:  2,
		CurrentWord: word,
		Version:     version,
	}
}

func withHealth(p domain.PlayerSnapshot, health, words int) domain.PlayerSnapshot {
	p.Health = health
	p.WordsCompleted = words
	p.Alive = health > 0
	return p
}

func roomEnv(msgType protocol.MessageType, room domain.RoomSnapshot) protocol.Envelope {
	return protocol.NewEnvelope(msgType, "", testRoomID, protocol.RoomPayload{Room: room})
}

// joinAndPlay walks the coordinator through joining and the countdown
func joinAndPlay(t *testing.T, c *Coordinator) {
	t.Helper()
	c.Handle(protocol.NewEnvelope(protocol.MsgJoinRoom, "me", testRoomID,
		protocol.RoomPayload{Room: snapshot(2, domain.StateWaitingForHost, "", opponent, me)}))
	c.Handle(protocol.NewEnvelope(protocol.MsgCountdownStart, "", testRoomID, protocol.CountPayload{Count: 10}))
	c.Handle(protocol.NewEnvelope(protocol.MsgGameStart, "", testRoomID, protocol.WordPayload{Word: "ALPHA"}))
	c.Handle(roomEnv(protocol.MsgGameStateUpdate, snapshot(14, domain.StateGameStarted, "ALPHA", opponent, me)))
	require.Equal(t, PhasePlaying, c.State().Phase)
	drain(c)
}

func TestCoordinator_CreateRoomSendsIdentity(t *testing.T) {
	t.Parallel()
	c, sender := newTestCoordinator(t)
	id := c.State().PlayerID
	require.NotEmpty(t, id)

	require.NoError(t, c.CreateRoom(""))
	require.NoError(t, c.CreateRoom("evening duel"))

	self := domain.PlayerSnapshot{ID: id, Name: "Me", CharacterID: "knight"}
	want := []protocol.Envelope{
		protocol.NewEnvelope(protocol.MsgCreateRoom, id, "", protocol.PlayerPayload{Player: self}),
		protocol.NewEnvelope(protocol.MsgCreateRoom, id, "", protocol.RoomPayload{Room: domain.RoomSnapshot{
			Name:    "evening duel",
			Players: []domain.PlayerSnapshot{self},
		}}),
	}
	if diff := cmp.Diff(want, sender.sent()); diff != "" {
		t.Errorf("sent envelopes mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinator_MatchEventSequence(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)

	joined := snapshot(2, domain.StateWaitingForHost, "", opponent, me)
	countdown := snapshot(3, domain.StateCountdown, "", opponent, me)
	countdown.Countdown = 10
	playing := snapshot(14, domain.StateGameStarted, "ALPHA", opponent, me)

	for _, env := range []protocol.Envelope{
		protocol.NewEnvelope(protocol.MsgJoinRoom, "me", testRoomID, protocol.RoomPayload{Room: joined}),
		protocol.NewEnvelope(protocol.MsgPlayerJoin, "me", testRoomID, protocol.PlayerPayload{Player: me}),
		roomEnv(protocol.MsgRoomUpdate, joined),
		protocol.NewEnvelope(protocol.MsgCountdownStart, "", testRoomID, protocol.CountPayload{Count: 10}),
		roomEnv(protocol.MsgRoomUpdate, countdown),
		protocol.NewEnvelope(protocol.MsgCountdownUpdate, "", testRoomID, protocol.CountPayload{Count: 9}),
		protocol.NewEnvelope(protocol.MsgGameStart, "", testRoomID, protocol.WordPayload{Word: "ALPHA"}),
		roomEnv(protocol.MsgGameStateUpdate, playing),
	} {
		c.Handle(env)
	}

	want := []Event{
		RoomUpdated{Room: joined},
		PhaseChanged{From: PhaseLobby, To: PhaseInRoom},
		HealthChanged{Own: 5, Opponent: 5},
		PhaseChanged{From: PhaseInRoom, To: PhaseCountdown},
		CountdownTicked{Count: 10},
		RoomUpdated{Room: countdown},
		CountdownTicked{Count: 9},
		PhaseChanged{From: PhaseCountdown, To: PhasePlaying},
		WordChanged{Word: "ALPHA"},
		RoomUpdated{Room: playing},
	}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	state := c.State()
	assert.Equal(t, "me", state.PlayerID)
	assert.Equal(t, testRoomID, state.RoomID)
	assert.Equal(t, "ALPHA", state.CurrentWord)
	assert.True(t, state.HasOpponent)
	assert.Equal(t, "Op", state.Opponent.Name)
}

func TestCoordinator_SnapshotsOverwriteAndStaleOnesAreDropped(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)
	joinAndPlay(t, c)

	hit := snapshot(16, domain.StateGameStarted, "BRAVO", withHealth(opponent, 4, 0), withHealth(me, 5, 1))
	c.Handle(roomEnv(protocol.MsgGameStateUpdate, hit))
	c.Handle(roomEnv(protocol.MsgGameStateUpdate, snapshot(15, domain.StateGameStarted, "ALPHA", opponent, me)))
	c.Handle(roomEnv(protocol.MsgGameStateUpdate, hit))

	want := []Event{
		RoomUpdated{Room: hit},
		WordChanged{Word: "BRAVO"},
		HealthChanged{Own: 5, Opponent: 4},
	}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	state := c.State()
	assert.Equal(t, uint64(16), state.Version)
	assert.Equal(t, 1, state.Own.WordsCompleted)
	assert.Equal(t, 4, state.Opponent.Health)
	assert.Equal(t, "BRAVO", state.CurrentWord)
}

func TestCoordinator_OpponentAttackLeavesHealthAlone(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)
	joinAndPlay(t, c)

	c.Handle(protocol.NewEnvelope(protocol.MsgPlayerTyped, "op", testRoomID, protocol.TypedPayload{Event: protocol.TypedWordComplete}))
	c.Handle(protocol.NewEnvelope(protocol.MsgPlayerProgress, "op", testRoomID, protocol.IndexPayload{Index: 3}))

	want := []Event{OpponentAttacked{PlayerID: "op"}, OpponentProgressed{Index: 3}}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, c.State().Own.Health)
	assert.Equal(t, 3, c.State().OpponentProgress)

	c.Handle(roomEnv(protocol.MsgGameStateUpdate,
		snapshot(16, domain.StateGameStarted, "BRAVO", withHealth(opponent, 5, 1), withHealth(me, 4, 0))))
	assert.Equal(t, 4, c.State().Own.Health)
	assert.Equal(t, 0, c.State().OpponentProgress, "snapshot supersedes the progress hint")
}

func TestCoordinator_ProgressIsSentOncePerAdvance(t *testing.T) {
	t.Parallel()
	c, sender := newTestCoordinator(t)

	assert.ErrorIs(t, c.Progress(1), domain.ErrInvalidState)
	assert.ErrorIs(t, c.WordCompleted(), domain.ErrInvalidState)

	joinAndPlay(t, c)
	before := len(sender.sent())

	for _, idx := range []int{1, 1, 0, 2, 2, 3} {
		require.NoError(t, c.Progress(idx))
	}
	require.NoError(t, c.WordCompleted())
	require.NoError(t, c.Progress(1))

	var got []string
	for _, env := range sender.sent()[before:] {
		switch p := env.Payload.(type) {
		case protocol.IndexPayload:
			got = append(got, fmt.Sprintf("progress %d", p.Index))
		case protocol.TypedPayload:
			got = append(got, string(p.Event))
		}
		assert.Equal(t, testRoomID, env.RoomID)
		assert.Equal(t, "me", env.SenderID)
	}
	assert.Equal(t, []string{"progress 1", "progress 2", "progress 3", "WORD_COMPLETE", "progress 1"}, got)
}

func TestCoordinator_OpponentDisconnectReturnsToLobby(t *testing.T) {
	t.Parallel()
	c, sender := newTestCoordinator(t)
	joinAndPlay(t, c)

	c.Handle(protocol.NewEnvelope(protocol.MsgPlayerDisconnected, "", testRoomID,
		protocol.DisconnectPayload{PlayerID: "op", WinnerID: "me"}))

	want := []Event{
		OpponentLeft{PlayerID: "op", Disconnected: true},
		MatchOver{WinnerID: "me", Won: true, Reason: domain.EndReasonDisconnect},
		PhaseChanged{From: PhasePlaying, To: PhaseLobby},
	}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	sent := sender.sent()
	last := sent[len(sent)-1]
	assert.Equal(t, protocol.MsgLeaveRoom, last.Type)
	assert.Equal(t, testRoomID, last.RoomID)

	// The trailing broadcast of the room just left is ignored
	c.Handle(roomEnv(protocol.MsgRoomUpdate, snapshot(20, domain.StateGameEnded, "", me)))
	c.Handle(protocol.NewEnvelope(protocol.MsgLeaveRoom, "me", testRoomID, nil))
	assert.Empty(t, drain(c))

	state := c.State()
	assert.Equal(t, PhaseLobby, state.Phase)
	assert.Empty(t, state.RoomID)
	assert.False(t, state.HasOpponent)
}

func TestCoordinator_GameOverAndLeave(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)
	joinAndPlay(t, c)

	c.Handle(protocol.NewEnvelope(protocol.MsgGameOver, "", testRoomID,
		protocol.GameOverPayload{WinnerID: "op", Reason: domain.EndReasonKnockout}))
	require.NoError(t, c.LeaveRoom())
	c.Handle(protocol.NewEnvelope(protocol.MsgLeaveRoom, "me", testRoomID, nil))

	want := []Event{
		PhaseChanged{From: PhasePlaying, To: PhaseEnded},
		MatchOver{WinnerID: "op", Won: false, Reason: domain.EndReasonKnockout},
		PhaseChanged{From: PhaseEnded, To: PhaseLobby},
	}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, c.LeaveRoom(), domain.ErrNotInRoom)
	assert.NoError(t, c.CreateRoom(""), "client can start a new match")
}

func TestCoordinator_RejectionKeepsState(t *testing.T) {
	t.Parallel()
	c, _ := newTestCoordinator(t)

	c.Handle(protocol.NewEnvelope(protocol.MsgJoinRoom, "", "NOPE42",
		protocol.RejectionPayload{Code: protocol.RejectRoomNotFound, Message: "room not found"}))

	want := []Event{Rejected{Request: "JOIN_ROOM", Code: protocol.RejectRoomNotFound, Message: "room not found"}}
	if diff := cmp.Diff(want, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, PhaseLobby, c.State().Phase)
	assert.Empty(t, c.State().RoomID)
}

func TestCoordinator_RoomList(t *testing.T) {
	t.Parallel()
	c, sender := newTestCoordinator(t)

	require.NoError(t, c.RequestRooms())
	assert.Equal(t, protocol.MsgRoomList, sender.sent()[0].Type)

	rooms := []domain.RoomSnapshot{snapshot(1, domain.StateWaitingForPlayers, "", opponent)}
	c.Handle(protocol.NewEnvelope(protocol.MsgRoomList, "", "", protocol.RoomListPayload{Rooms: rooms}))

	if diff := cmp.Diff([]Event{RoomsListed{Rooms: rooms}}, drain(c)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rooms, c.State().Rooms); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
}

// scriptedConn replays canned reads, then reports EOF
type scriptedConn struct {
	recordingSender
	reads []readResult
}

type readResult struct {
	env protocol.Envelope
	err error
}

func (s *scriptedConn) ReadEnvelope() (protocol.Envelope, error) {
	if len(s.reads) == 0 {
		return protocol.Envelope{}, io.EOF
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.env, r.err
}

func (s *scriptedConn) Close() error { return nil }

func TestCoordinator_Run(t *testing.T) {
	t.Parallel()
	malformed := fmt.Errorf("%w: bad json", protocol.ErrMalformed)
	rooms := protocol.NewEnvelope(protocol.MsgRoomList, "", "", protocol.RoomListPayload{Rooms: []domain.RoomSnapshot{}})

	t.Run("single malformed envelope is skipped", func(t *testing.T) {
		c, _ := newTestCoordinator(t)
		conn := &scriptedConn{reads: []readResult{{err: malformed}, {env: rooms}, {err: malformed}, {env: rooms}}}

		require.NoError(t, c.Run(context.Background(), conn))

		events := drain(c)
		require.Len(t, events, 4)
		assert.IsType(t, RoomsListed{}, events[0])
		assert.IsType(t, RoomsListed{}, events[1])
		assert.Equal(t, PhaseChanged{From: PhaseLobby, To: PhaseOffline}, events[2])
		assert.Equal(t, Disconnected{Err: io.EOF}, events[3])
	})

	t.Run("two malformed envelopes end the session", func(t *testing.T) {
		c, _ := newTestCoordinator(t)
		conn := &scriptedConn{reads: []readResult{{err: malformed}, {err: malformed}, {env: rooms}}}

		err := c.Run(context.Background(), conn)
		assert.ErrorIs(t, err, protocol.ErrMalformed)
		assert.Equal(t, PhaseOffline, c.State().Phase)
	})

	t.Run("read failure", func(t *testing.T) {
		c, _ := newTestCoordinator(t)
		boom := errors.New("connection reset")
		conn := &scriptedConn{reads: []readResult{{err: boom}}}

		assert.ErrorIs(t, c.Run(context.Background(), conn), boom)
	})
}
