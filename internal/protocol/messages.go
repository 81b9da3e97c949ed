package protocol

import "wordclash/internal/domain"

// MessageType is the closed set of envelope type tags
type MessageType string

const (
	MsgJoinRoom           MessageType = "JOIN_ROOM"
	MsgCreateRoom         MessageType = "CREATE_ROOM"
	MsgLeaveRoom          MessageType = "LEAVE_ROOM"
	MsgStartGame          MessageType = "START_GAME"
	MsgPlayerTyped        MessageType = "PLAYER_TYPED"
	MsgGameStateUpdate    MessageType = "GAME_STATE_UPDATE"
	MsgRoomList           MessageType = "ROOM_LIST"
	MsgPlayerJoin         MessageType = "PLAYER_JOIN"
	MsgPlayerLeave        MessageType = "PLAYER_LEAVE"
	MsgGameOver           MessageType = "GAME_OVER"
	MsgRoomUpdate         MessageType = "ROOM_UPDATE"
	MsgCountdownStart     MessageType = "COUNTDOWN_START"
	MsgCountdownUpdate    MessageType = "COUNTDOWN_UPDATE"
	MsgGameStart          MessageType = "GAME_START"
	MsgPlayerProgress     MessageType = "PLAYER_PROGRESS"
	MsgPlayerDisconnected MessageType = "PLAYER_DISCONNECTED"
)

// TypedEvent is the tagged event carried by PLAYER_TYPED
type TypedEvent string

const (
	TypedWordComplete TypedEvent = "WORD_COMPLETE"
)

// Payload is one variant of the envelope payload sum type
type Payload interface {
	kind() payloadKind
}

type payloadKind string

const (
	kindNone       payloadKind = "none"
	kindPlayer     payloadKind = "player"
	kindRoom       payloadKind = "room"
	kindRooms      payloadKind = "rooms"
	kindCount      payloadKind = "count"
	kindWord       payloadKind = "word"
	kindIndex      payloadKind = "index"
	kindTyped      payloadKind = "typed"
	kindGameOver   payloadKind = "gameOver"
	kindDisconnect payloadKind = "disconnect"
	kindRejection  payloadKind = "rejection"
)

// PlayerPayload carries a player identity or snapshot
type PlayerPayload struct {
	Player domain.PlayerSnapshot
}

// RoomPayload carries a room snapshot
type RoomPayload struct {
	Room domain.RoomSnapshot
}

// RoomListPayload carries the lobby listing
type RoomListPayload struct {
	Rooms []domain.RoomSnapshot
}

// CountPayload carries the remaining countdown seconds
type CountPayload struct {
	Count int
}

// WordPayload carries the first word of a game
type WordPayload struct {
	Word string
}

// IndexPayload carries a typed-character index
type IndexPayload struct {
	Index int
}

// TypedPayload carries a typing event
type TypedPayload struct {
	Event TypedEvent
}

// GameOverPayload announces the winner of a match
type GameOverPayload struct {
	WinnerID string           `json:"winnerId"`
	Reason   domain.EndReason `json:"reason"`
}

// DisconnectPayload announces a lost connection, and the winner if a game was running
type DisconnectPayload struct {
	PlayerID string `json:"playerId"`
	WinnerID string `json:"winnerId,omitempty"`
}

// RejectionPayload reports a refused request back to its sender
type RejectionPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (PlayerPayload) kind() payloadKind     { return kindPlayer }
func (RoomPayload) kind() payloadKind       { return kindRoom }
func (RoomListPayload) kind() payloadKind   { return kindRooms }
func (CountPayload) kind() payloadKind      { return kindCount }
func (WordPayload) kind() payloadKind       { return kindWord }
func (IndexPayload) kind() payloadKind      { return kindIndex }
func (TypedPayload) kind() payloadKind      { return kindTyped }
func (GameOverPayload) kind() payloadKind   { return kindGameOver }
func (DisconnectPayload) kind() payloadKind { return kindDisconnect }
func (RejectionPayload) kind() payloadKind  { return kindRejection }

// Rejection codes
const (
	RejectInvalidMessage   = "INVALID_MESSAGE"
	RejectRoomNotFound     = "ROOM_NOT_FOUND"
	RejectRoomFull         = "ROOM_FULL"
	RejectAlreadyStarted   = "GAME_ALREADY_STARTED"
	RejectNotHost          = "NOT_HOST"
	RejectNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	RejectInvalidState     = "INVALID_STATE"
	RejectNotInRoom        = "NOT_IN_ROOM"
	RejectAlreadyInRoom    = "ALREADY_IN_ROOM"
	RejectInternalError    = "INTERNAL_ERROR"
	RejectRateLimited      = "RATE_LIMITED"
)

// allowedPayloads lists the payload variants valid for each type tag
var allowedPayloads = map[MessageType][]payloadKind{
	MsgCreateRoom:         {kindPlayer, kindRoom, kindRejection},
	MsgJoinRoom:           {kindPlayer, kindRoom, kindRejection},
	MsgLeaveRoom:          {kindNone, kindRejection},
	MsgStartGame:          {kindNone, kindRejection},
	MsgPlayerTyped:        {kindTyped, kindRejection},
	MsgGameStateUpdate:    {kindRoom},
	MsgRoomList:           {kindNone, kindRooms},
	MsgPlayerJoin:         {kindPlayer},
	MsgPlayerLeave:        {kindPlayer},
	MsgGameOver:           {kindGameOver},
	MsgRoomUpdate:         {kindRoom},
	MsgCountdownStart:     {kindCount},
	MsgCountdownUpdate:    {kindCount},
	MsgGameStart:          {kindWord},
	MsgPlayerProgress:     {kindIndex},
	MsgPlayerDisconnected: {kindDisconnect},
}

// Valid reports whether t belongs to the closed set of message types
func (t MessageType) Valid() bool {
	_, ok := allowedPayloads[t]
	return ok
}
