package app

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

const (
	// DefaultRoomCodeLength is the default length for room ids
	DefaultRoomCodeLength = 6

	roomCodeAttempts = 10
)

// RoomCodeChars are characters used for room ids (no ambiguous chars)
const RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RegistryConfig configures a Registry. Zero values select production defaults.
type RegistryConfig struct {
	Words     domain.WordPool
	Settings  domain.RoomSettings
	Logger    *slog.Logger
	Clock     func() time.Time
	NewTicker TickerFactory
	Recorder  MatchRecorder
	// Entropy feeds room code generation. Defaults to crypto/rand.
	Entropy   io.Reader
}

// Registry tracks every live room. Lookups and creates of distinct rooms
// never contend on a shared lock.
type Registry struct {
	rooms    sync.Map // roomID -> *RoomSession
	words    domain.WordPool
	settings domain.RoomSettings
	deps     sessionDeps
	entropy  io.Reader
	logger   *slog.Logger
}

// NewRegistry creates a registry
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	if cfg.Settings == (domain.RoomSettings{}) {
		cfg.Settings = domain.DefaultRoomSettings()
	}
	if cfg.Entropy == nil {
		cfg.Entropy = rand.Reader
	}

	return &Registry{
		words:    cfg.Words,
		settings: cfg.Settings,
		entropy:  cfg.Entropy,
		logger:   cfg.Logger,
		deps: sessionDeps{
			clock:     cfg.Clock,
			newTicker: cfg.NewTicker,
			recorder:  cfg.Recorder,
			newID:     uuid.NewString,
		},
	}
}

// CreateRoom creates a room containing only the host and replies to the host
// with CREATE_ROOM
func (r *Registry) CreateRoom(name string, host *domain.Player, conn Sender) (*RoomSession, error) {
	if name == "" {
		name = fmt.Sprintf("%s's room", host.Name)
	}

	var session *RoomSession
	for attempts := 0; attempts < roomCodeAttempts && session == nil; attempts++ {
		code, err := generateRoomCode(r.entropy, DefaultRoomCodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room := domain.NewRoom(code, name, r.settings, r.words)
		candidate := newRoomSession(room, r.deps, r.logger)
		if _, loaded := r.rooms.LoadOrStore(room.ID, candidate); loaded {
			candidate.Close()
			continue
		}
		session = candidate
	}
	if session == nil {
		return nil, errors.New("failed to generate unique room code")
	}

	if _, err := session.join(host, conn, protocol.MsgCreateRoom); err != nil {
		r.rooms.CompareAndDelete(session.ID(), session)
		session.Close()
		return nil, err
	}

	r.logger.Info("room created", "roomID", session.ID(), "hostID", host.ID)
	return session, nil
}

// Get returns a room session by id
func (r *Registry) Get(roomID string) (*RoomSession, error) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return v.(*RoomSession), nil
}

// JoinRoom adds a player to an existing room and replies with JOIN_ROOM
func (r *Registry) JoinRoom(roomID string, p *domain.Player, conn Sender) (domain.RoomSnapshot, error) {
	session, err := r.Get(roomID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return session.join(p, conn, protocol.MsgJoinRoom)
}

// LeaveRoom removes a player from a room and deletes the room once empty
func (r *Registry) LeaveRoom(roomID, playerID string, disconnected bool) error {
	session, err := r.Get(roomID)
	if err != nil {
		return err
	}

	empty, err := session.leave(playerID, disconnected)
	if empty {
		r.delete(session)
	}
	return err
}

// ResetRoom brings an ended room back for a rematch
func (r *Registry) ResetRoom(roomID string) (domain.RoomSnapshot, error) {
	session, err := r.Get(roomID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return session.Reset()
}

// ListRooms returns snapshots of every room, oldest first
func (r *Registry) ListRooms() []domain.RoomSnapshot {
	rooms := make([]domain.RoomSnapshot, 0)
	r.rooms.Range(func(_, v any) bool {
		rooms = append(rooms, v.(*RoomSession).Snapshot())
		return true
	})

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

// RoomCount returns the number of live rooms
func (r *Registry) RoomCount() int {
	count := 0
	r.rooms.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// PlayerCount returns the total number of players across all rooms
func (r *Registry) PlayerCount() int {
	total := 0
	r.rooms.Range(func(_, v any) bool {
		total += v.(*RoomSession).PlayerCount()
		return true
	})
	return total
}

// Close shuts down every session
func (r *Registry) Close() {
	r.rooms.Range(func(k, v any) bool {
		v.(*RoomSession).Close()
		r.rooms.Delete(k)
		return true
	})
}

func (r *Registry) delete(session *RoomSession) {
	if r.rooms.CompareAndDelete(session.ID(), session) {
		r.logger.Info("room deleted", "roomID", session.ID())
	}
	session.Close()
}

// generateRoomCode generates a random room code
func generateRoomCode(entropy io.Reader, length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(entropy, b); err != nil {
		return "", err
	}

	code := make([]byte, length)
	for i := range code {
		code[i] = RoomCodeChars[int(b[i])%len(RoomCodeChars)]
	}

	return string(code), nil
}
