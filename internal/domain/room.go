package domain

import (
	"errors"
	"time"
)

// RoomSettings holds configurable match parameters
type RoomSettings struct {
	MaxPlayers       int `json:"maxPlayers"`
	CountdownSeconds int `json:"countdownSeconds"`
	StartingHealth   int `json:"startingHealth"`
}

// DefaultRoomSettings returns the default room settings
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MaxPlayers:       2,
		CountdownSeconds: 10,
		StartingHealth:   DefaultHealth,
	}
}

// Room represents a two-player match. It is not safe for concurrent use;
// callers serialize access per room.
type Room struct {
	ID                 string
	Name               string
	HostID             string
	Players            []*Player
	State              RoomState
	CurrentWord        string
	RecentWords        []string
	Countdown          int
	CountdownStartedAt time.Time
	GameStartedAt      time.Time
	WinnerID           string
	Version            uint64
	Settings           RoomSettings
	CreatedAt          time.Time

	words WordPool
}

// WordCompleteResult describes the effect of a completed word
type WordCompleteResult struct {
	NextWord string
	Ended    bool
	WinnerID string
}

// NewRoom creates an empty room waiting for players
func NewRoom(id, name string, settings RoomSettings, words WordPool) *Room {
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = 2
	}
	if settings.StartingHealth <= 0 {
		settings.StartingHealth = DefaultHealth
	}
	return &Room{
		ID:        id,
		Name:      name,
		Players:   make([]*Player, 0, settings.MaxPlayers),
		State:     StateWaitingForPlayers,
		Settings:  settings,
		CreatedAt: time.Now(),
		words:     words,
	}
}

// AddPlayer adds a player while the room has capacity and has not started.
// Adding a player that is already present succeeds without changes.
func (r *Room) AddPlayer(p *Player) bool {
	if r.HasPlayer(p.ID) {
		return true
	}
	if r.State.IsStarted() || len(r.Players) >= r.Settings.MaxPlayers {
		return false
	}

	p.ResetForRematch(r.Settings.StartingHealth)
	r.Players = append(r.Players, p)

	// First player becomes the host
	if r.HostID == "" {
		r.HostID = p.ID
	}

	r.Version++
	return true
}

// RemovePlayer removes a player from the room
func (r *Room) RemovePlayer(playerID string) bool {
	idx := r.indexOf(playerID)
	if idx < 0 {
		return false
	}

	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	// If host left, the head of the list takes over
	if r.HostID == playerID {
		r.HostID = ""
		if len(r.Players) > 0 {
			r.HostID = r.Players[0].ID
		}
	}

	r.Version++
	return true
}

// Transition moves the room to the target state if the move is a valid forward step
func (r *Room) Transition(target RoomState) error {
	if !r.State.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	r.State = target
	r.Version++
	return nil
}

// IsFull returns true when no seat is left
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.Settings.MaxPlayers
}

// IsEmpty returns true when nobody is in the room
func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// IsHost checks if the given player is the host
func (r *Room) IsHost(playerID string) bool {
	return r.HostID != "" && r.HostID == playerID
}

// HasPlayer checks if the player is a member of the room
func (r *Room) HasPlayer(playerID string) bool {
	return r.indexOf(playerID) >= 0
}

// GetPlayer returns a player by ID
func (r *Room) GetPlayer(playerID string) (*Player, error) {
	idx := r.indexOf(playerID)
	if idx < 0 {
		return nil, ErrPlayerNotFound
	}
	return r.Players[idx], nil
}

// Opponent returns the other player of the room, if any
func (r *Room) Opponent(playerID string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID != playerID {
			return p, true
		}
	}
	return nil, false
}

// CanStart checks if the host may start the countdown
func (r *Room) CanStart() bool {
	return r.State == StateWaitingForHost && r.IsFull()
}

// StartCountdown moves a full room into COUNTDOWN on behalf of the host
func (r *Room) StartCountdown(playerID string, now time.Time) error {
	if !r.IsHost(playerID) {
		return ErrNotHost
	}
	if len(r.Players) < r.Settings.MaxPlayers {
		return ErrNotEnoughPlayers
	}
	if err := r.Transition(StateCountdown); err != nil {
		return ErrInvalidState
	}

	r.Countdown = r.Settings.CountdownSeconds
	r.CountdownStartedAt = now
	return nil
}

// AdvanceCountdown recomputes the countdown from the time elapsed since it
// started. It reports justStarted exactly once, on the call that moves the
// room from COUNTDOWN to GAME_STARTED.
func (r *Room) AdvanceCountdown(now time.Time) (bool, error) {
	if r.State != StateCountdown {
		return false, nil
	}

	elapsed := int(now.Sub(r.CountdownStartedAt) / time.Second)
	remaining := r.Settings.CountdownSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	if remaining != r.Countdown {
		r.Countdown = remaining
		r.Version++
	}
	if remaining > 0 {
		return false, nil
	}

	word, err := r.nextWord()
	if err != nil {
		return false, err
	}
	if err := r.Transition(StateGameStarted); err != nil {
		return false, err
	}

	r.GameStartedAt = now
	r.setWord(word)
	return true, nil
}

// ApplyWordComplete credits the player with a completed word, hits every
// other player once and serves the next word. The room ends when an
// opponent runs out of health.
func (r *Room) ApplyWordComplete(playerID string) (WordCompleteResult, error) {
	if r.State != StateGameStarted {
		return WordCompleteResult{}, ErrInvalidState
	}

	player, err := r.GetPlayer(playerID)
	if err != nil {
		return WordCompleteResult{}, err
	}
	if !player.IsAlive() {
		return WordCompleteResult{}, ErrPlayerNotAlive
	}

	// A knockout ends the game without a next word; otherwise the word is
	// chosen before anything changes so a failure leaves the room untouched
	defeated := false
	for _, other := range r.Players {
		if other.ID != playerID && other.Health <= 1 {
			defeated = true
		}
	}

	var word string
	if !defeated {
		if word, err = r.nextWord(); err != nil {
			return WordCompleteResult{}, err
		}
	}

	player.WordsCompleted++
	for _, other := range r.Players {
		if other.ID != playerID {
			other.TakeHit()
		}
	}
	r.Version++

	if defeated {
		if err := r.End(playerID); err != nil {
			return WordCompleteResult{}, err
		}
		return WordCompleteResult{Ended: true, WinnerID: playerID}, nil
	}

	r.setWord(word)

	return WordCompleteResult{NextWord: word}, nil
}

// SetProgress records a player's typed-character index into the current word
func (r *Room) SetProgress(playerID string, index int) (int, error) {
	if r.State != StateGameStarted {
		return 0, ErrInvalidState
	}
	player, err := r.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}

	if index < 0 {
		index = 0
	}
	if limit := len(r.CurrentWord); index > limit {
		index = limit
	}
	player.Progress = index
	return index, nil
}

// End finishes a running game with the given winner
func (r *Room) End(winnerID string) error {
	if err := r.Transition(StateGameEnded); err != nil {
		return err
	}
	r.WinnerID = winnerID
	return nil
}

// Winner returns the winning player once the game has ended
func (r *Room) Winner() (*Player, bool) {
	if r.State != StateGameEnded || r.WinnerID == "" {
		return nil, false
	}
	p, err := r.GetPlayer(r.WinnerID)
	if err != nil {
		return nil, false
	}
	return p, true
}

// ResetForRematch is the only way back to an earlier state. Remaining players
// get their health back and the room becomes joinable again.
func (r *Room) ResetForRematch() {
	for _, p := range r.Players {
		p.ResetForRematch(r.Settings.StartingHealth)
	}

	r.State = StateWaitingForPlayers
	if r.IsFull() {
		r.State = StateWaitingForHost
	}
	r.CurrentWord = ""
	r.Countdown = 0
	r.CountdownStartedAt = time.Time{}
	r.GameStartedAt = time.Time{}
	r.WinnerID = ""
	r.Version++
}

// nextWord asks the pool for a word that is neither the current one nor,
// when the pool is large enough, one of the recently served words
func (r *Room) nextWord() (string, error) {
	if r.words == nil {
		return "", ErrNoWordAvailable
	}

	current := make([]string, 0, 1)
	if r.CurrentWord != "" {
		current = append(current, r.CurrentWord)
	}

	exclude := current
	if r.words.Len() > RecentWordWindow {
		exclude = append(append([]string{}, current...), r.RecentWords...)
	}

	word, err := r.words.NextWord(exclude)
	if errors.Is(err, ErrNoWordAvailable) && len(exclude) > len(current) {
		word, err = r.words.NextWord(current)
	}
	if err != nil {
		return "", err
	}
	return word, nil
}

// setWord serves a new word and resets everyone's progress
func (r *Room) setWord(word string) {
	r.CurrentWord = word
	for _, p := range r.Players {
		p.Progress = 0
	}

	recent := make([]string, 0, RecentWordWindow)
	for _, w := range r.RecentWords {
		if w != word {
			recent = append(recent, w)
		}
	}
	recent = append(recent, word)
	if len(recent) > RecentWordWindow {
		recent = recent[len(recent)-RecentWordWindow:]
	}
	r.RecentWords = recent
	r.Version++
}

func (r *Room) indexOf(playerID string) int {
	for i, p := range r.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy of the room suitable for broadcasting
func (r *Room) Snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.Snapshot())
	}

	return RoomSnapshot{
		ID:                 r.ID,
		Name:               r.Name,
		HostID:             r.HostID,
		State:              r.State,
		Players:            players,
		MaxPlayers:         r.Settings.MaxPlayers,
		CurrentWord:        r.CurrentWord,
		Countdown:          r.Countdown,
		CountdownStartedAt: timeRef(r.CountdownStartedAt),
		GameStartedAt:      timeRef(r.GameStartedAt),
		WinnerID:           r.WinnerID,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
	}
}
