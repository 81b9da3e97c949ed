package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"wordclash/internal/domain"
)

// ErrMalformed is returned for frames that cannot be decoded into a valid envelope
var ErrMalformed = errors.New("malformed envelope")

// Envelope is one protocol message. Envelopes are passed by value and never
// modified after construction.
type Envelope struct {
	Type     MessageType
	SenderID string
	RoomID   string
	Payload  Payload // nil when the type carries no payload
}

// NewEnvelope creates a new envelope
func NewEnvelope(msgType MessageType, senderID, roomID string, payload Payload) Envelope {
	return Envelope{
		Type:     msgType,
		SenderID: senderID,
		RoomID:   roomID,
		Payload:  payload,
	}
}

// Validate checks the payload variant against the type tag
func (e Envelope) Validate() error {
	allowed, ok := allowedPayloads[e.Type]
	if !ok {
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}

	k := kindNone
	if e.Payload != nil {
		k = e.Payload.kind()
	}
	if !slices.Contains(allowed, k) {
		return fmt.Errorf("%w: %s payload not allowed for %s", ErrMalformed, k, e.Type)
	}

	switch p := e.Payload.(type) {
	case TypedPayload:
		if p.Event != TypedWordComplete {
			return fmt.Errorf("%w: unknown typed event %q", ErrMalformed, p.Event)
		}
	case CountPayload:
		if p.Count < 0 {
			return fmt.Errorf("%w: negative count", ErrMalformed)
		}
	case IndexPayload:
		if p.Index < 0 {
			return fmt.Errorf("%w: negative index", ErrMalformed)
		}
	case WordPayload:
		if !IsValidWord(p.Word) {
			return fmt.Errorf("%w: invalid word %q", ErrMalformed, p.Word)
		}
	case RoomPayload:
		if p.Room.State != "" && !p.Room.State.Valid() {
			return fmt.Errorf("%w: unknown room state %q", ErrMalformed, p.Room.State)
		}
		if p.Room.MaxPlayers > 0 && len(p.Room.Players) > p.Room.MaxPlayers {
			return fmt.Errorf("%w: room has more players than seats", ErrMalformed)
		}
	}
	return nil
}

// IsValidWord reports whether w is a non-empty uppercase alphanumeric word
func IsValidWord(w string) bool {
	if w == "" {
		return false
	}
	for _, c := range w {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// wireEnvelope is the JSON form of an envelope
type wireEnvelope struct {
	Type     MessageType  `json:"type"`
	SenderID string       `json:"senderId,omitempty"`
	RoomID   string       `json:"roomId,omitempty"`
	Payload  *wirePayload `json:"payload,omitempty"`
}

// wirePayload has one member per payload variant; exactly one is set
type wirePayload struct {
	Player     *domain.PlayerSnapshot `json:"player,omitempty"`
	Room       *domain.RoomSnapshot   `json:"room,omitempty"`
	Rooms      *[]domain.RoomSnapshot `json:"rooms,omitempty"`
	Count      *int                   `json:"count,omitempty"`
	Word       *string                `json:"word,omitempty"`
	Index      *int                   `json:"index,omitempty"`
	Typed      *TypedEvent            `json:"typed,omitempty"`
	GameOver   *GameOverPayload       `json:"gameOver,omitempty"`
	Disconnect *DisconnectPayload     `json:"disconnect,omitempty"`
	Rejection  *RejectionPayload      `json:"rejection,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		Type:     e.Type,
		SenderID: e.SenderID,
		RoomID:   e.RoomID,
	}

	if e.Payload != nil {
		wp := &wirePayload{}
		switch p := e.Payload.(type) {
		case PlayerPayload:
			wp.Player = &p.Player
		case RoomPayload:
			wp.Room = &p.Room
		case RoomListPayload:
			rooms := p.Rooms
			if rooms == nil {
				rooms = []domain.RoomSnapshot{}
			}
			wp.Rooms = &rooms
		case CountPayload:
			wp.Count = &p.Count
		case WordPayload:
			wp.Word = &p.Word
		case IndexPayload:
			wp.Index = &p.Index
		case TypedPayload:
			wp.Typed = &p.Event
		case GameOverPayload:
			wp.GameOver = &p
		case DisconnectPayload:
			wp.Disconnect = &p
		case RejectionPayload:
			wp.Rejection = &p
		default:
			return nil, fmt.Errorf("unsupported payload %T", e.Payload)
		}
		w.Payload = wp
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	payload, err := w.Payload.variant()
	if err != nil {
		return err
	}

	*e = Envelope{
		Type:     w.Type,
		SenderID: w.SenderID,
		RoomID:   w.RoomID,
		Payload:  payload,
	}
	return nil
}

// variant converts the wire payload into its sum type, rejecting payloads
// that set more than one member
func (wp *wirePayload) variant() (Payload, error) {
	if wp == nil {
		return nil, nil
	}

	var found []Payload
	if wp.Player != nil {
		found = append(found, PlayerPayload{Player: *wp.Player})
	}
	if wp.Room != nil {
		found = append(found, RoomPayload{Room: *wp.Room})
	}
	if wp.Rooms != nil {
		found = append(found, RoomListPayload{Rooms: *wp.Rooms})
	}
	if wp.Count != nil {
		found = append(found, CountPayload{Count: *wp.Count})
	}
	if wp.Word != nil {
		found = append(found, WordPayload{Word: *wp.Word})
	}
	if wp.Index != nil {
		found = append(found, IndexPayload{Index: *wp.Index})
	}
	if wp.Typed != nil {
		found = append(found, TypedPayload{Event: *wp.Typed})
	}
	if wp.GameOver != nil {
		found = append(found, *wp.GameOver)
	}
	if wp.Disconnect != nil {
		found = append(found, *wp.Disconnect)
	}
	if wp.Rejection != nil {
		found = append(found, *wp.Rejection)
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: payload sets %d variants", ErrMalformed, len(found))
	}
}

// Marshal encodes a validated envelope
func Marshal(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Unmarshal decodes and validates one envelope
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Envelope{}, err
		}
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
