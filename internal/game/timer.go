package game

import "time"

// startTimerLocked begins a fresh countdown, implicitly replacing any
// running timer: the generation counter is bumped, so ticks belonging to
// an older timer observe a newer generation and stop without effect. The
// new countdown is broadcast immediately, then once per tick until it
// reaches zero, at which point onDone runs exactly once under the
// session lock.
func (s *Session) startTimerLocked(seconds int, onDone func()) {
	s.timerGen++
	gen := s.timerGen
	s.countdown = seconds
	s.broadcastLocked()
	go s.runTimer(gen, onDone)
}

// cancelTimerLocked stops the running timer without completing it.
func (s *Session) cancelTimerLocked() {
	s.timerGen++
	s.countdown = 0
}

func (s *Session) runTimer(gen uint64, onDone func()) {
	ticker := time.NewTicker(s.rules.Tick)
	defer ticker.Stop()
	for range ticker.C {
		if !s.tick(gen, onDone) {
			return
		}
	}
}

// tick advances the countdown by one unit and reports whether the timer
// is still live. The zero crossing completes the timer instead of
// broadcasting; the next phase announces itself.
func (s *Session) tick(gen uint64, onDone func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen {
		return false
	}
	if s.countdown > 0 {
		s.countdown--
	}
	if s.countdown <= 0 {
		s.timerGen++
		onDone()
		return false
	}
	s.broadcastLocked()
	return true
}
