package game

import (
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Session is the single authority over one live trivia game. Every
// mutation (participant commands, timer ticks, scoring) runs under one
// mutex, and every mutation ends with a full-state broadcast to all
// subscribers. Connection handlers never touch state directly.
type Session struct {
	bank  domain.Bank
	rules Rules
	now   func() time.Time

	mu            sync.RWMutex
	phase         domain.Phase
	questionIndex int
	countdown     int
	participants  map[string]*domain.Participant
	firstAnswers  map[string]int
	timerGen      uint64
	subscribers   map[chan domain.Update]string
}

// NewSession creates an idle session in the lobby phase for the given bank.
func NewSession(bank domain.Bank, rules Rules) *Session {
	return NewSessionWithClock(bank, rules, time.Now)
}

// NewSessionWithClock allows deterministic submission timestamps in tests.
func NewSessionWithClock(bank domain.Bank, rules Rules, now func() time.Time) *Session {
	return &Session{
		bank:         bank,
		rules:        rules.withDefaults(),
		now:          now,
		phase:        domain.PhaseLobby,
		participants: make(map[string]*domain.Participant),
		firstAnswers: make(map[string]int),
		subscribers:  make(map[chan domain.Update]string),
	}
}

// Join creates or replaces the participant record for id. Valid in any
// phase; a joiner always starts from a clean record.
func (s *Session) Join(id, name string, isHost bool, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants[id] = &domain.Participant{
		ID:     id,
		Name:   name,
		Avatar: avatar,
		IsHost: isHost,
	}
	delete(s.firstAnswers, id)
	s.broadcastLocked()
}

// Leave removes the participant and its scoring scratch entry. Unknown
// ids are ignored without a broadcast.
func (s *Session) Leave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[id]; !ok {
		return
	}
	delete(s.participants, id)
	delete(s.firstAnswers, id)
	s.broadcastLocked()
}

// SubmitAnswer records or updates the caller's selected option. Ignored
// outside the answering phase and for unknown callers. The first
// submission of a question is remembered for the scoring fairness rule;
// later submissions that switch options set the changed flag.
func (s *Session) SubmitAnswer(id string, optionIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseAnswering {
		return
	}
	p, ok := s.participants[id]
	if !ok {
		return
	}

	if _, seen := s.firstAnswers[id]; !seen {
		s.firstAnswers[id] = optionIndex
	} else if p.Answer == nil || *p.Answer != optionIndex {
		p.ChangedAnswer = true
	}

	now := s.now()
	p.Answer = &optionIndex
	p.SubmittedAt = &now
	s.broadcastLocked()
}

// StartGame begins play from the lobby: all scores and deltas reset, the
// question index returns to zero, and the first reading phase starts.
// Host-only; ignored from any other phase.
func (s *Session) StartGame(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hostLocked(callerID) || s.phase != domain.PhaseLobby {
		return
	}
	for _, p := range s.participants {
		p.Score = 0
		p.LastDelta = 0
	}
	s.questionIndex = 0
	s.enterReadingLocked()
}

// NextQuestion advances from the leaderboard to the next question's
// reading phase, or to final results when the bank is exhausted.
// Host-only; ignored from any other phase.
func (s *Session) NextQuestion(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hostLocked(callerID) || s.phase != domain.PhaseLeaderboard {
		return
	}
	if s.questionIndex+1 < s.bank.Count() {
		s.questionIndex++
		s.enterReadingLocked()
		return
	}
	s.phase = domain.PhaseFinalResults
	s.countdown = 0
	s.broadcastLocked()
}

// ResetGame returns the session to the lobby with all scores and answers
// cleared. Host-only; valid from the leaderboard or final results.
func (s *Session) ResetGame(callerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hostLocked(callerID) {
		return
	}
	if s.phase != domain.PhaseLeaderboard && s.phase != domain.PhaseFinalResults {
		return
	}
	s.cancelTimerLocked()
	for _, p := range s.participants {
		p.Score = 0
		p.LastDelta = 0
		p.Answer = nil
		p.ChangedAnswer = false
		p.SubmittedAt = nil
	}
	s.firstAnswers = make(map[string]int)
	s.questionIndex = 0
	s.phase = domain.PhaseLobby
	s.broadcastLocked()
}

// Subscribe registers an update channel for a connection. participantID
// routes private feedback events; the empty string receives broadcasts
// only. The channel is seeded with the current snapshot. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe(participantID string) (<-chan domain.Update, func()) {
	ch := make(chan domain.Update, 8)

	s.mu.Lock()
	s.subscribers[ch] = participantID
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- domain.Update{Snapshot: &initial}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current full session state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// enterReadingLocked starts the current question: any running timer is
// cancelled, every participant's answer state and last delta are cleared
// along with the scoring scratch, then the reading countdown begins.
func (s *Session) enterReadingLocked() {
	for _, p := range s.participants {
		p.Answer = nil
		p.ChangedAnswer = false
		p.LastDelta = 0
		p.SubmittedAt = nil
	}
	s.firstAnswers = make(map[string]int)
	s.phase = domain.PhaseReading
	s.startTimerLocked(s.rules.ReadingSeconds, s.beginAnsweringLocked)
}

func (s *Session) beginAnsweringLocked() {
	s.phase = domain.PhaseAnswering
	s.startTimerLocked(s.rules.AnsweringSeconds, s.finishAnsweringLocked)
}

// finishAnsweringLocked scores the question exactly once, then opens the
// reveal phase.
func (s *Session) finishAnsweringLocked() {
	s.scoreLocked()
	s.phase = domain.PhaseReveal
	s.startTimerLocked(s.rules.RevealSeconds, s.showLeaderboardLocked)
}

func (s *Session) showLeaderboardLocked() {
	s.phase = domain.PhaseLeaderboard
	s.countdown = 0
	s.broadcastLocked()
}

func (s *Session) hostLocked(id string) bool {
	p, ok := s.participants[id]
	return ok && p.IsHost
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	update := domain.Update{Snapshot: &snap}
	for ch := range s.subscribers {
		pushUpdate(ch, update)
	}
}

// sendLocked delivers a private update to every subscription registered
// under participantID.
func (s *Session) sendLocked(participantID string, update domain.Update) {
	if participantID == "" {
		return
	}
	for ch, id := range s.subscribers {
		if id == participantID {
			pushUpdate(ch, update)
		}
	}
}

// pushUpdate delivers without blocking; when a subscriber's buffer is
// full the oldest pending update is dropped so a slow client cannot
// stall the session. Callers hold the session lock, so the freed slot
// cannot be stolen by another producer.
func pushUpdate(ch chan domain.Update, update domain.Update) {
	select {
	case ch <- update:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- update
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	participants := make(map[string]domain.Participant, len(s.participants))
	for id, p := range s.participants {
		participants[id] = *p
	}
	return domain.Snapshot{
		Phase:         s.phase,
		QuestionIndex: s.questionIndex,
		Bank:          s.bank,
		Participants:  participants,
		Countdown:     s.countdown,
	}
}
