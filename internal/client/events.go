package client

import (
	"wordclash/internal/domain"
)

// Phase is the coordinator's view of where the local player is
type Phase string

const (
	PhaseOffline   Phase = "OFFLINE"   // No connection
	PhaseLobby     Phase = "LOBBY"     // Connected, not in a room
	PhaseInRoom    Phase = "IN_ROOM"   // Waiting for an opponent or for the host
	PhaseCountdown Phase = "COUNTDOWN" // Countdown running
	PhasePlaying   Phase = "PLAYING"   // Match in progress
	PhaseEnded     Phase = "ENDED"     // Match over, still in the room
)

// phaseOf maps a room state to the local phase
func phaseOf(state domain.RoomState) Phase {
	switch state {
	case domain.StateCountdown:
		return PhaseCountdown
	case domain.StateGameStarted:
		return PhasePlaying
	case domain.StateGameEnded:
		return PhaseEnded
	default:
		return PhaseInRoom
	}
}

// Event is something the presentation layer reacts to
type Event interface {
	isEvent()
}

// PhaseChanged reports a phase transition
type PhaseChanged struct {
	From, To Phase
}

// RoomUpdated carries the latest applied room snapshot
type RoomUpdated struct {
	Room domain.RoomSnapshot
}

// RoomsListed carries a lobby listing
type RoomsListed struct {
	Rooms []domain.RoomSnapshot
}

// OpponentJoined reports a new opponent in the room
type OpponentJoined struct {
	Player domain.PlayerSnapshot
}

// OpponentLeft reports that the opponent left or lost its connection
type OpponentLeft struct {
	PlayerID     string
	Disconnected bool
}

// CountdownTicked carries the remaining countdown seconds
type CountdownTicked struct {
	Count int
}

// WordChanged carries the word to type next
type WordChanged struct {
	Word string
}

// HealthChanged carries health values taken from an authoritative snapshot
type HealthChanged struct {
	Own      int
	Opponent int
}

// OpponentProgressed is a cosmetic hint of the opponent's position in the word
type OpponentProgressed struct {
	Index int
}

// OpponentAttacked reports that the opponent completed a word
type OpponentAttacked struct {
	PlayerID string
}

// MatchOver reports the end of the current match
type MatchOver struct {
	WinnerID string
	Won      bool
	Reason   domain.EndReason
}

// Rejected reports a request the server refused
type Rejected struct {
	Request string
	Code    string
	Message string
}

// Disconnected reports that the connection to the server is gone
type Disconnected struct {
	Err error
}

func (PhaseChanged) isEvent()       {}
func (RoomUpdated) isEvent()        {}
func (RoomsListed) isEvent()        {}
func (OpponentJoined) isEvent()     {}
func (OpponentLeft) isEvent()       {}
func (CountdownTicked) isEvent()    {}
func (WordChanged) isEvent()        {}
func (HealthChanged) isEvent()      {}
func (OpponentProgressed) isEvent() {}
func (OpponentAttacked) isEvent()   {}
func (MatchOver) isEvent()          {}
func (Rejected) isEvent()           {}
func (Disconnected) isEvent()       {}
