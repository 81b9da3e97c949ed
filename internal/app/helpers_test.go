package app

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

var testWords = []string{"ALPHA", "BRAVO", "CHARLIE", "DELTA", "ECHO", "FOXTROT", "GOLF"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSender collects every envelope delivered to one connection
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

func (r *recordingSender) all() []protocol.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Envelope(nil), r.envs...)
}

func (r *recordingSender) ofType(t protocol.MessageType) []protocol.Envelope {
	var out []protocol.Envelope
	for _, env := range r.all() {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// waitFor blocks until n envelopes of type t arrived and returns them
func (r *recordingSender) waitFor(tb testing.TB, t protocol.MessageType, n int) []protocol.Envelope {
	tb.Helper()
	require.Eventually(tb, func() bool {
		return len(r.ofType(t)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %s", n, t)
	return r.ofType(t)
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// manualTicker hands out one channel the test drives tick by tick
type manualTicker struct {
	ticks    chan time.Time
	mu       sync.Mutex
	created  int
	released int
}

func newManualTicker() *manualTicker {
	return &manualTicker{ticks: make(chan time.Time)}
}

func (m *manualTicker) Create(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
	return m.ticks, func() {
		m.mu.Lock()
		m.released++
		m.mu.Unlock()
	}
}

func (m *manualTicker) releasedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// MockMatchRecorder is a testify mock of MatchRecorder
type MockMatchRecorder struct {
	mock.Mock
}

func (m *MockMatchRecorder) RecordMatch(ctx context.Context, result domain.MatchResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func waitRecorded(t *testing.T, recorded <-chan struct{}) {
	t.Helper()
	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("match was not recorded")
	}
}

type testEnv struct {
	registry *Registry
	clock    *fakeClock
	ticker   *manualTicker
}

func newTestEnv(t *testing.T, recorder MatchRecorder) *testEnv {
	t.Helper()

	bank, err := NewWordBank(testWords, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	env := &testEnv{clock: newFakeClock(), ticker: newManualTicker()}
	env.registry = NewRegistry(RegistryConfig{
		Words:     bank,
		Settings:  domain.DefaultRoomSettings(),
		Logger:    discardLogger(),
		Clock:     env.clock.Now,
		NewTicker: env.ticker.Create,
		Recorder:  recorder,
	})
	t.Cleanup(env.registry.Close)
	return env
}

// fullRoom creates a room for host "h" and lets guest "p" join it
func (e *testEnv) fullRoom(t *testing.T) (*RoomSession, *recordingSender, *recordingSender) {
	t.Helper()

	host, guest := &recordingSender{}, &recordingSender{}
	session, err := e.registry.CreateRoom("duel", domain.NewPlayer("h", "Host", "knight"), host)
	require.NoError(t, err)
	_, err = e.registry.JoinRoom(session.ID(), domain.NewPlayer("p", "Guest", "mage"), guest)
	require.NoError(t, err)
	return session, host, guest
}

// runCountdown starts the game and ticks until GAME_START
func (e *testEnv) runCountdown(t *testing.T, session *RoomSession) {
	t.Helper()

	require.NoError(t, session.StartGame("h"))
	for i := 0; i < domain.DefaultRoomSettings().CountdownSeconds; i++ {
		e.ticker.ticks <- e.clock.Advance(time.Second)
	}
	require.Eventually(t, func() bool {
		return session.Snapshot().State == domain.StateGameStarted
	}, time.Second, 5*time.Millisecond)
}
