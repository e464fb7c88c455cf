package quiz

import (
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/store"
)

type Phase string

const (
	PhaseQuestion    Phase = "question"
	PhaseAnswer      Phase = "answer"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseEnd         Phase = "end"
)

// State is a quiz room: the envelope plus the game payload.
type State struct {
	types.Room
	Questions            []Question     `json:"questions,omitempty"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	Phase                Phase          `json:"phase,omitempty"`
	Answers              map[string]int `json:"answers,omitempty"`
	Scores               map[string]int `json:"scores,omitempty"`
	StartedAt            int64          `json:"startedAt,omitempty"`
	FinishedAt           int64          `json:"finishedAt,omitempty"`
}

// Current returns the question being played, if any.
func (s *State) Current() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// IsLast reports whether the current question is the final one.
func (s *State) IsLast() bool {
	return s.CurrentQuestionIndex+1 >= len(s.Questions)
}

func (s *State) payload() store.Document {
	doc := store.Document{
		"status":               s.Status,
		"questions":            s.Questions,
		"currentQuestionIndex": s.CurrentQuestionIndex,
		"phase":                s.Phase,
		"answers":              nonNil(s.Answers),
		"scores":               nonNil(s.Scores),
		"startedAt":            s.StartedAt,
		"finishedAt":           nil,
	}
	if s.FinishedAt != 0 {
		doc["finishedAt"] = s.FinishedAt
	}
	return doc
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func copyScores(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
