package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrInvalidState       = errors.New("invalid action for current room state")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrNotHost            = errors.New("only host can perform this action")
	ErrNotInRoom          = errors.New("player is not in a room")
	ErrAlreadyInRoom      = errors.New("player is already in a room")
	ErrPlayerNotAlive     = errors.New("player is not alive")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNoWordAvailable    = errors.New("no word available")
	ErrEmptyName          = errors.New("name cannot be empty")
)
