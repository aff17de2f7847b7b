package domain

import "time"

// Phase identifies what the session is currently doing.
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseReading      Phase = "reading"
	PhaseAnswering    Phase = "answering"
	PhaseReveal       Phase = "reveal"
	PhaseLeaderboard  Phase = "leaderboard"
	PhaseFinalResults Phase = "final_results"
)

// Question is a single multiple-choice question. Immutable after load.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Bank is the ordered question list a session plays through.
type Bank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Count returns the number of questions in the bank.
func (b Bank) Count() int {
	return len(b.Questions)
}

// Question returns the question at index i.
func (b Bank) Question(i int) (Question, error) {
	if i < 0 || i >= len(b.Questions) {
		return Question{}, ErrQuestionIndex
	}
	return b.Questions[i], nil
}

// Participant is one connected session member, host or player.
type Participant struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar,omitempty"`
	Score         int        `json:"score"`
	LastDelta     int        `json:"lastDelta"`
	Answer        *int       `json:"answer"`
	ChangedAnswer bool       `json:"changedAnswer"`
	SubmittedAt   *time.Time `json:"submittedAt"`
	IsHost        bool       `json:"isHost"`
}

// Snapshot is the full session state pushed to every connection after
// each mutation.
type Snapshot struct {
	Phase         Phase                  `json:"phase"`
	QuestionIndex int                    `json:"questionIndex"`
	Bank          Bank                   `json:"bank"`
	Participants  map[string]Participant `json:"participants"`
	Countdown     int                    `json:"countdown"`
}

// AnswerFeedback is the private scoring result for one participant.
type AnswerFeedback struct {
	IsCorrect bool   `json:"isCorrect"`
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
}

// Award reasons carried in AnswerFeedback.Reason.
const (
	ReasonIncorrect      = "incorrect answer"
	ReasonFastCorrect    = "among first 5 correct, unchanged"
	ReasonCorrectKept    = "correct, unchanged"
	ReasonChangedCorrect = "changed to correct answer"
	ReasonChangedLate    = "changed to correct in final 3 seconds"
	ReasonCorrect        = "correct answer"
)

// Update is what a session subscriber receives: a broadcast snapshot or a
// private feedback event. Exactly one field is set.
type Update struct {
	Snapshot *Snapshot
	Feedback *AnswerFeedback
}
