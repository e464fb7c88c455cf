package imposter

import (
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/store"
)

type Phase string

const (
	PhaseClue   Phase = "clue"
	PhaseVote   Phase = "vote"
	PhaseReveal Phase = "reveal"
	PhaseEnd    Phase = "end"
)

type Role string

const (
	RolePlayer   Role = "player"
	RoleImposter Role = "imposter"
)

type Winner string

const (
	WinnerNone     Winner = ""
	WinnerCrew     Winner = "crew"
	WinnerImposter Winner = "imposter"
)

type Guess struct {
	Guess string `json:"guess"`
	By    string `json:"by"`
}

// State is an imposter room: the envelope plus the game payload.
// Empty strings and nil pointers are persisted as null.
type State struct {
	types.Room
	Word          string            `json:"word,omitempty"`
	ImposterWord  string            `json:"imposterWord,omitempty"`
	Roles         map[string]Role   `json:"roles,omitempty"`
	Clues         map[string]string `json:"clues,omitempty"`
	Phase         Phase             `json:"phase,omitempty"`
	Round         int               `json:"round,omitempty"`
	Turn          int               `json:"turn"`
	CluesGiven    map[string]string `json:"cluesGiven,omitempty"`
	Votes         map[string]string `json:"votes,omitempty"`
	Eliminated    []string          `json:"eliminated,omitempty"`
	Winner        Winner            `json:"winner,omitempty"`
	ImposterGuess *Guess            `json:"imposterGuess,omitempty"`
	Reveal        string            `json:"reveal,omitempty"`
	SelectedSetID string            `json:"selectedSetId,omitempty"`
	StartedAt     int64             `json:"startedAt,omitempty"`
	FinishedAt    int64             `json:"finishedAt,omitempty"`
}

// ImposterID returns the player holding the imposter role.
func (s *State) ImposterID() string {
	for id, role := range s.Roles {
		if role == RoleImposter {
			return id
		}
	}
	return ""
}

func (s *State) IsEliminated(id string) bool {
	for _, e := range s.Eliminated {
		if e == id {
			return true
		}
	}
	return false
}

// Alive returns the players not yet eliminated, in join order.
func (s *State) Alive() []string {
	alive := []string{}
	for _, p := range s.Players {
		if !s.IsEliminated(p.ID) {
			alive = append(alive, p.ID)
		}
	}
	return alive
}

// Secret returns the word shown to the given player.
func (s *State) Secret(id string) string {
	return s.Clues[id]
}

// payload is the full game record written on every transition, so fields from
// a previous game never survive a restart.
func (s *State) payload() store.Document {
	var guess interface{}
	if s.ImposterGuess != nil {
		guess = s.ImposterGuess
	}
	var selectedSet interface{}
	if s.SelectedSetID != "" {
		selectedSet = s.SelectedSetID
	}
	doc := store.Document{
		"status":        s.Status,
		"word":          s.Word,
		"imposterWord":  s.ImposterWord,
		"roles":         s.Roles,
		"clues":         s.Clues,
		"phase":         s.Phase,
		"round":         s.Round,
		"turn":          s.Turn,
		"cluesGiven":    nonNilMap(s.CluesGiven),
		"votes":         nonNilMap(s.Votes),
		"eliminated":    nonNilSlice(s.Eliminated),
		"winner":        nullable(string(s.Winner)),
		"imposterGuess": guess,
		"reveal":        nullable(s.Reveal),
		"selectedSetId": selectedSet,
		"startedAt":     s.StartedAt,
	}
	if s.FinishedAt != 0 {
		doc["finishedAt"] = s.FinishedAt
	} else {
		doc["finishedAt"] = nil
	}
	return doc
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
