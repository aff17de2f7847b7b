package game

import (
	"sort"

	"trivia-session-service/internal/domain"
)

// award is one participant's scoring outcome for a single question.
type award struct {
	participantID string
	points        int
	correct       bool
	reason        string
}

// scoreLocked runs the scoring engine for the current question, applies
// the awards and delivers each participant's private feedback. Called
// exactly once per question, at the answering-to-reveal boundary.
func (s *Session) scoreLocked() {
	question, err := s.bank.Question(s.questionIndex)
	if err != nil {
		// the controller keeps questionIndex inside the bank for every
		// playing phase; an invalid index here means the session state is
		// corrupt and scoring must not guess
		return
	}

	players := make([]*domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.IsHost {
			continue
		}
		players = append(players, p)
	}

	for _, a := range scoreAnswers(question.CorrectIndex, players, s.firstAnswers, s.countdown) {
		p := s.participants[a.participantID]
		p.Score += a.points
		p.LastDelta = a.points
		fb := domain.AnswerFeedback{IsCorrect: a.correct, Points: a.points, Reason: a.reason}
		s.sendLocked(a.participantID, domain.Update{Feedback: &fb})
	}
}

// scoreAnswers computes the per-player awards for one question. Players
// are processed in ascending submission-timestamp order with missing
// timestamps last (ties broken by id), which is what makes the
// first-five tier fair. countdown is the broadcast countdown at the
// moment of scoring; timer-driven scoring always passes 0 because the
// answering countdown has just expired.
func scoreAnswers(correctIndex int, players []*domain.Participant, firstAnswers map[string]int, countdown int) []award {
	ordered := make([]*domain.Participant, len(players))
	copy(ordered, players)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].SubmittedAt, ordered[j].SubmittedAt
		switch {
		case a == nil && b == nil:
			return ordered[i].ID < ordered[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return ordered[i].ID < ordered[j].ID
		default:
			return a.Before(*b)
		}
	})

	awards := make([]award, 0, len(ordered))
	fastAwarded := 0
	for _, p := range ordered {
		a := award{participantID: p.ID}
		if p.Answer == nil || *p.Answer != correctIndex {
			a.reason = domain.ReasonIncorrect
			awards = append(awards, a)
			continue
		}

		a.correct = true
		first, answered := firstAnswers[p.ID]
		wasFirstCorrect := answered && first == correctIndex
		switch {
		case !p.ChangedAnswer && wasFirstCorrect:
			if fastAwarded < fastAwardLimit {
				fastAwarded++
				a.points = pointsFastCorrect
				a.reason = domain.ReasonFastCorrect
			} else {
				a.points = pointsCorrect
				a.reason = domain.ReasonCorrectKept
			}
		case p.ChangedAnswer:
			// countdown is already 0 whenever the answering timer ran out
			// naturally, so the reduced award applies only when scoring
			// fires with time still on the clock
			if countdown > 0 && countdown <= lateChangeWindow {
				a.points = pointsLateChange
				a.reason = domain.ReasonChangedLate
			} else {
				a.points = pointsCorrect
				a.reason = domain.ReasonChangedCorrect
			}
		default:
			a.points = pointsCorrect
			a.reason = domain.ReasonCorrect
		}
		awards = append(awards, a)
	}
	return awards
}
