package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordclash/internal/app"
	"wordclash/internal/config"
	"wordclash/internal/domain"
	"wordclash/internal/protocol"
	"wordclash/internal/storage"
)

type nopSender struct{}

func (nopSender) Send(protocol.Envelope) error { return nil }

type apiResponse[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data"`
	Error   *ErrorInfo `json:"error"`
}

func decode[T any](t *testing.T, res *http.Response) apiResponse[T] {
	t.Helper()
	defer res.Body.Close()
	var out apiResponse[T]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func newTestAPI(t *testing.T, history MatchHistory) (*httptest.Server, *app.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bank, err := app.NewWordBank([]string{"ALPHA"}, nil)
	require.NoError(t, err)
	registry := app.NewRegistry(app.RegistryConfig{Words: bank, Logger: logger})
	t.Cleanup(registry.Close)

	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: "0", Env: "development"}}
	srv := httptest.NewServer(NewServer(cfg, registry, history, nil, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, registry
}

func TestServer_HealthAndStats(t *testing.T) {
	t.Parallel()
	srv, registry := newTestAPI(t, nil)

	res, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	health := decode[HealthResponse](t, res)
	assert.Equal(t, "ok", health.Data.Status)

	_, err = registry.CreateRoom("", domain.NewPlayer("h", "Host", ""), nopSender{})
	require.NoError(t, err)

	res, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	stats := decode[StatsResponse](t, res)
	assert.Equal(t, StatsResponse{ActiveRooms: 1, TotalPlayers: 1}, stats.Data)
}

func TestServer_Rooms(t *testing.T) {
	t.Parallel()
	srv, registry := newTestAPI(t, nil)

	session, err := registry.CreateRoom("", domain.NewPlayer("h", "Host", ""), nopSender{})
	require.NoError(t, err)

	res, err := http.Get(srv.URL + "/api/rooms")
	require.NoError(t, err)
	list := decode[RoomListResponse](t, res)
	require.Len(t, list.Data.Rooms, 1)
	assert.Equal(t, "Host's room", list.Data.Rooms[0].Name)

	res, err = http.Get(srv.URL + "/api/rooms/" + session.ID())
	require.NoError(t, err)
	room := decode[domain.RoomSnapshot](t, res)
	assert.True(t, room.Success)
	assert.Equal(t, domain.StateWaitingForPlayers, room.Data.State)

	res, err = http.Get(srv.URL + "/api/rooms/NOPE42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	missing := decode[domain.RoomSnapshot](t, res)
	require.NotNil(t, missing.Error)
	assert.Equal(t, protocol.RejectRoomNotFound, missing.Error.Code)
}

func TestServer_ResetOnlyAfterGame(t *testing.T) {
	t.Parallel()
	srv, registry := newTestAPI(t, nil)

	session, err := registry.CreateRoom("", domain.NewPlayer("h", "Host", ""), nopSender{})
	require.NoError(t, err)

	res, err := http.Post(srv.URL+"/api/rooms/"+session.ID()+"/reset", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	rejected := decode[domain.RoomSnapshot](t, res)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, protocol.RejectInvalidState, rejected.Error.Code)
}

func TestServer_Matches(t *testing.T) {
	t.Parallel()

	t.Run("history disabled", func(t *testing.T) {
		srv, _ := newTestAPI(t, nil)
		res, err := http.Get(srv.URL + "/api/matches")
		require.NoError(t, err)
		list := decode[MatchListResponse](t, res)
		assert.True(t, list.Success)
		assert.Empty(t, list.Data.Matches)
	})

	t.Run("history enabled", func(t *testing.T) {
		store, err := storage.Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		ended := time.UnixMilli(1_700_000_000_000).UTC()
		for _, id := range []string{"m1", "m2"} {
			require.NoError(t, store.RecordMatch(context.Background(), domain.MatchResult{
				ID:       id,
				RoomID:   "ROOM01",
				WinnerID: "h",
				LoserID:  "p",
				Reason:   domain.EndReasonKnockout,
				EndedAt:  ended,
			}))
			ended = ended.Add(time.Minute)
		}

		srv, _ := newTestAPI(t, store)
		res, err := http.Get(srv.URL + "/api/matches?limit=1")
		require.NoError(t, err)
		list := decode[MatchListResponse](t, res)
		require.Len(t, list.Data.Matches, 1)
		assert.Equal(t, "m2", list.Data.Matches[0].ID)

		res, err = http.Get(srv.URL + "/api/matches?limit=zero")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})
}

func TestServer_PreflightAndCORS(t *testing.T) {
	t.Parallel()
	srv, _ := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}
