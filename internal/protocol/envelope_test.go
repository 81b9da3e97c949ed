package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordclash/internal/domain"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	room := domain.RoomSnapshot{
		ID:         "ABCD12",
		Name:       "duel",
		HostID:     "h",
		State:      domain.StateWaitingForHost,
		MaxPlayers: 2,
		Players: []domain.PlayerSnapshot{
			{ID: "h", Name: "Host", Health: 5, Alive: true},
			{ID: "p", Name: "Guest", Health: 5, Alive: true},
		},
		Version: 7,
	}

	testCases := []struct {
		desc string
		env  Envelope
	}{
		{desc: "create room", env: NewEnvelope(MsgCreateRoom, "h", "", RoomPayload{Room: room})},
		{desc: "leave room", env: NewEnvelope(MsgLeaveRoom, "h", "ABCD12", nil)},
		{desc: "room list", env: NewEnvelope(MsgRoomList, "", "", RoomListPayload{Rooms: []domain.RoomSnapshot{room}})},
		{desc: "countdown", env: NewEnvelope(MsgCountdownUpdate, "", "ABCD12", CountPayload{Count: 0})},
		{desc: "game start", env: NewEnvelope(MsgGameStart, "", "ABCD12", WordPayload{Word: "KEYBOARD"})},
		{desc: "progress", env: NewEnvelope(MsgPlayerProgress, "p", "ABCD12", IndexPayload{Index: 3})},
		{desc: "typed", env: NewEnvelope(MsgPlayerTyped, "p", "ABCD12", TypedPayload{Event: TypedWordComplete})},
		{desc: "game over", env: NewEnvelope(MsgGameOver, "", "ABCD12", GameOverPayload{WinnerID: "h", Reason: domain.EndReasonKnockout})},
		{desc: "disconnect", env: NewEnvelope(MsgPlayerDisconnected, "", "ABCD12", DisconnectPayload{PlayerID: "p", WinnerID: "h"})},
		{desc: "rejection", env: NewEnvelope(MsgStartGame, "p", "ABCD12", RejectionPayload{Code: RejectNotHost, Message: "only the host can start"})},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			data, err := Marshal(tc.env)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.env, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvelope_WireShape(t *testing.T) {
	t.Parallel()

	data, err := Marshal(NewEnvelope(MsgCountdownStart, "", "R1", CountPayload{Count: 10}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "COUNTDOWN_START", raw["type"])
	assert.Equal(t, "R1", raw["roomId"])
	assert.NotContains(t, raw, "senderId")
	assert.Equal(t, map[string]any{"count": float64(10)}, raw["payload"])
}

func TestUnmarshal_Rejects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc  string
		input string
	}{
		{desc: "not json", input: `{"type":`},
		{desc: "unknown type", input: `{"type":"ERROR"}`},
		{desc: "payload for wrong type", input: `{"type":"GAME_START","payload":{"count":3}}`},
		{desc: "missing required payload", input: `{"type":"GAME_START"}`},
		{desc: "two members set", input: `{"type":"COUNTDOWN_UPDATE","payload":{"count":3,"word":"A"}}`},
		{desc: "unknown typed event", input: `{"type":"PLAYER_TYPED","payload":{"typed":"BACKSPACE"}}`},
		{desc: "negative count", input: `{"type":"COUNTDOWN_UPDATE","payload":{"count":-1}}`},
		{desc: "negative index", input: `{"type":"PLAYER_PROGRESS","payload":{"index":-4}}`},
		{desc: "lowercase word", input: `{"type":"GAME_START","payload":{"word":"hello"}}`},
		{desc: "unknown room state", input: `{"type":"ROOM_UPDATE","payload":{"room":{"id":"R","state":"PAUSED"}}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestMarshal_RejectsInvalidEnvelope(t *testing.T) {
	t.Parallel()

	_, err := Marshal(NewEnvelope(MsgGameStart, "", "R", IndexPayload{Index: 1}))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsValidWord(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidWord("GOPHER"))
	assert.True(t, IsValidWord("HTTP2"))
	assert.False(t, IsValidWord(""))
	assert.False(t, IsValidWord("Gopher"))
	assert.False(t, IsValidWord("TWO WORDS"))
}
