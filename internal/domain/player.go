package domain

import (
	"strings"
	"time"
)

// DefaultHealth is the health every player starts a match with
const DefaultHealth = 5

// Player represents a participant of a room
type Player struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CharacterID    string    `json:"characterId"`
	Health         int       `json:"health"`
	WordsCompleted int       `json:"wordsCompleted"`
	Progress       int       `json:"progress"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// NewPlayer creates a new player with full health
func NewPlayer(id, name, characterID string) *Player {
	return &Player{
		ID:          id,
		Name:        strings.TrimSpace(name),
		CharacterID: characterID,
		Health:      DefaultHealth,
		JoinedAt:    time.Now(),
	}
}

// IsAlive returns true while the player has health left
func (p *Player) IsAlive() bool {
	return p.Health > 0
}

// TakeHit removes one point of health, never going below zero
func (p *Player) TakeHit() {
	if p.Health > 0 {
		p.Health--
	}
}

// ResetForRematch restores the player to the state of a fresh match
func (p *Player) ResetForRematch(health int) {
	p.Health = health
	p.WordsCompleted = 0
	p.Progress = 0
}

// PlayerSnapshot is an immutable copy of a player's state
type PlayerSnapshot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CharacterID    string `json:"characterId,omitempty"`
	Health         int    `json:"health"`
	WordsCompleted int    `json:"wordsCompleted"`
	Progress       int    `json:"progress"`
	Alive          bool   `json:"alive"`
}

// Snapshot copies the player's state
func (p *Player) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:             p.ID,
		Name:           p.Name,
		CharacterID:    p.CharacterID,
		Health:         p.Health,
		WordsCompleted: p.WordsCompleted,
		Progress:       p.Progress,
		Alive:          p.IsAlive(),
	}
}
