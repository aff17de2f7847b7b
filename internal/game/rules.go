package game

import "time"

// Rules carries the per-phase countdown lengths and the wall-clock length
// of one countdown unit. Tick shrinks in tests; countdown values broadcast
// to clients are always whole "seconds" regardless of Tick.
type Rules struct {
	ReadingSeconds   int
	AnsweringSeconds int
	RevealSeconds    int
	Tick             time.Duration
}

func (r Rules) withDefaults() Rules {
	if r.ReadingSeconds <= 0 {
		r.ReadingSeconds = 5
	}
	if r.AnsweringSeconds <= 0 {
		r.AnsweringSeconds = 20
	}
	if r.RevealSeconds <= 0 {
		r.RevealSeconds = 8
	}
	if r.Tick <= 0 {
		r.Tick = time.Second
	}
	return r
}

// Point values and thresholds for the scoring engine.
const (
	pointsFastCorrect = 20
	pointsCorrect     = 10
	pointsLateChange  = 5

	// fastAwardLimit caps how many unchanged first-try correct answers
	// earn the top award per question.
	fastAwardLimit = 5

	// lateChangeWindow is the countdown value at or below which a changed
	// answer earns the reduced award.
	lateChangeWindow = 3
)
