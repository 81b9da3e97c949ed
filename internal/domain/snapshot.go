package domain

import "time"

// RoomSnapshot is a deep, immutable copy of a room at a point in time
type RoomSnapshot struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	HostID             string           `json:"hostId,omitempty"`
	State              RoomState        `json:"state"`
	Players            []PlayerSnapshot `json:"players"`
	MaxPlayers         int              `json:"maxPlayers"`
	CurrentWord        string           `json:"currentWord,omitempty"`
	Countdown          int              `json:"countdown"`
	CountdownStartedAt *time.Time       `json:"countdownStartedAt,omitempty"`
	GameStartedAt      *time.Time       `json:"gameStartedAt,omitempty"`
	WinnerID           string           `json:"winnerId,omitempty"`
	Version            uint64           `json:"version"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// timeRef returns a copy of t, or nil when t is unset
func timeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Player returns the snapshot of the given player
func (s RoomSnapshot) Player(playerID string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Opponent returns the snapshot of the player that is not playerID
func (s RoomSnapshot) Opponent(playerID string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID != playerID {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// IsFull reports whether every seat is taken
func (s RoomSnapshot) IsFull() bool {
	return len(s.Players) >= s.MaxPlayers
}
