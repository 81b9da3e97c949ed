package domain

// RoomState represents the lifecycle state of a room
type RoomState string

const (
	StateWaitingForPlayers RoomState = "WAITING_FOR_PLAYERS" // Host alone in the room
	StateWaitingForHost    RoomState = "WAITING_FOR_HOST"    // Room full, host may start
	StateCountdown         RoomState = "COUNTDOWN"           // Counting down to the first word
	StateGameStarted       RoomState = "GAME_STARTED"        // Players are typing
	StateGameEnded         RoomState = "GAME_ENDED"          // A winner is known
)

// String returns the string representation of the state
func (s RoomState) String() string {
	return string(s)
}

// CanTransitionTo checks if a forward transition from the current state is valid.
// Backward moves only happen through Room.ResetForRematch.
func (s RoomState) CanTransitionTo(target RoomState) bool {
	validTransitions := map[RoomState][]RoomState{
		StateWaitingForPlayers: {StateWaitingForHost},
		StateWaitingForHost:    {StateCountdown},
		StateCountdown:         {StateGameStarted},
		StateGameStarted:       {StateGameEnded},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}
	return false
}

// IsStarted reports whether the room has left the joinable states
func (s RoomState) IsStarted() bool {
	return s == StateCountdown || s == StateGameStarted || s == StateGameEnded
}

// Valid reports whether s is one of the known states
func (s RoomState) Valid() bool {
	switch s {
	case StateWaitingForPlayers, StateWaitingForHost, StateCountdown, StateGameStarted, StateGameEnded:
		return true
	}
	return false
}
