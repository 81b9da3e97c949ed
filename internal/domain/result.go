package domain

import "time"

// EndReason explains how a match finished
type EndReason string

const (
	EndReasonKnockout   EndReason = "KNOCKOUT"
	EndReasonDisconnect EndReason = "DISCONNECT"
	EndReasonForfeit    EndReason = "FORFEIT"
)

// MatchResult is the record of a finished match
type MatchResult struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	RoomName    string    `json:"roomName"`
	WinnerID    string    `json:"winnerId"`
	WinnerName  string    `json:"winnerName"`
	LoserID     string    `json:"loserId"`
	LoserName   string    `json:"loserName"`
	Reason      EndReason `json:"reason"`
	WinnerWords int       `json:"winnerWords"`
	LoserWords  int       `json:"loserWords"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
}

// NewMatchResult builds the record for a room that just ended. The loser may
// already have left the room, in which case lost carries its last known state.
func NewMatchResult(id string, snap RoomSnapshot, lost PlayerSnapshot, reason EndReason, endedAt time.Time) MatchResult {
	result := MatchResult{
		ID:         id,
		RoomID:     snap.ID,
		RoomName:   snap.Name,
		WinnerID:   snap.WinnerID,
		LoserID:    lost.ID,
		LoserName:  lost.Name,
		LoserWords: lost.WordsCompleted,
		Reason:     reason,
		EndedAt:    endedAt,
	}
	if snap.GameStartedAt != nil {
		result.StartedAt = *snap.GameStartedAt
	}
	if winner, ok := snap.Player(snap.WinnerID); ok {
		result.WinnerName = winner.Name
		result.WinnerWords = winner.WordsCompleted
	}
	return result
}
