package app

import (
	"time"

	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

// TickerFactory creates a periodic tick source and the function that releases it
type TickerFactory func(d time.Duration) (<-chan time.Time, func())

// NewTimeTicker is the production TickerFactory
func NewTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// startCountdownLocked launches the ticker goroutine for a room that just
// entered COUNTDOWN (caller must hold lock)
func (s *RoomSession) startCountdownLocked() {
	s.stopCountdownLocked()

	stop := make(chan struct{})
	s.countdownStop = stop

	ticks, release := s.deps.newTicker(time.Second)
	go s.runCountdown(ticks, release, stop)
}

// stopCountdownLocked stops a running countdown, if any (caller must hold lock)
func (s *RoomSession) stopCountdownLocked() {
	if s.countdownStop != nil {
		close(s.countdownStop)
		s.countdownStop = nil
	}
}

func (s *RoomSession) runCountdown(ticks <-chan time.Time, release func(), stop <-chan struct{}) {
	defer release()

	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case <-ticks:
			if !s.advanceCountdown() {
				return
			}
		}
	}
}

// advanceCountdown recomputes the countdown and broadcasts the result. It
// reports whether the countdown is still running.
func (s *RoomSession) advanceCountdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	before := s.room.Countdown
	started, err := s.room.AdvanceCountdown(s.deps.clock())
	if err != nil {
		s.logger.Error("failed to advance countdown", "error", err)
		return false
	}

	if started {
		s.countdownStop = nil
		s.queueAll(protocol.NewEnvelope(protocol.MsgGameStart, "", s.room.ID, protocol.WordPayload{Word: s.room.CurrentWord}))
		s.queueAll(protocol.NewEnvelope(protocol.MsgGameStateUpdate, "", s.room.ID, protocol.RoomPayload{Room: s.room.Snapshot()}))
		s.logger.Info("game started", "word", s.room.CurrentWord)
		return false
	}

	if s.room.Countdown != before && s.room.Countdown > 0 {
		s.queueAll(protocol.NewEnvelope(protocol.MsgCountdownUpdate, "", s.room.ID, protocol.CountPayload{Count: s.room.Countdown}))
	}

	return s.room.State == domain.StateCountdown
}
