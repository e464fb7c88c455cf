package bingo

import (
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/cbodonnell/partyhub/pkg/store"
)

type Winner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// State is a bingo room: the envelope plus the game payload.
type State struct {
	types.Room
	Cards        map[string]Card `json:"cards,omitempty"`
	DrawnNumbers []int           `json:"drawnNumbers,omitempty"`
	Winner       *Winner         `json:"winner,omitempty"`
	StartedAt    int64           `json:"startedAt,omitempty"`
	FinishedAt   int64           `json:"finishedAt,omitempty"`
}

// Start deals one card to every current player and clears the draw.
func Start(st State, src random.Source, now int64) (State, error) {
	if len(st.Players) == 0 {
		return State{}, types.Precondition(types.ErrNotEnoughPlayers)
	}
	next := State{Room: st.Room}
	next.Status = types.StatusActive
	next.Cards = make(map[string]Card, len(st.Players))
	for _, p := range st.Players {
		next.Cards[p.ID] = GenerateCard(src)
	}
	next.DrawnNumbers = []int{}
	next.StartedAt = now
	return next, nil
}

// Draw appends one random undrawn number. ok is false once every number is drawn.
func Draw(st State, src random.Source) (next State, drawn int, ok bool) {
	n, ok := random.Pick(src, Remaining(st.DrawnNumbers))
	if !ok {
		return st, 0, false
	}
	next = st
	next.DrawnNumbers = append(append([]int{}, st.DrawnNumbers...), n)
	return next, n, true
}

// Claim validates player's card against the current draw and records the win.
func Claim(st State, player string, now int64) (State, error) {
	if st.Winner != nil || st.Status == types.StatusFinished {
		return State{}, types.Precondition(types.ErrGameOver)
	}
	if st.Status != types.StatusActive {
		return State{}, types.Preconditionf(types.ErrWrongStatus, "room is %s", st.Status)
	}
	card, ok := st.Cards[player]
	if !ok {
		return State{}, types.Precondition(types.ErrNoCard)
	}
	if !HasBingo(card, st.DrawnNumbers) {
		return State{}, types.Precondition(types.ErrNoBingo)
	}
	p, _ := st.Player(player)
	next := st
	next.Winner = &Winner{ID: player, Name: p.Name}
	next.Status = types.StatusFinished
	next.FinishedAt = now
	return next, nil
}

func (s *State) payload() store.Document {
	var winner interface{}
	if s.Winner != nil {
		winner = s.Winner
	}
	var finishedAt interface{}
	if s.FinishedAt != 0 {
		finishedAt = s.FinishedAt
	}
	drawn := s.DrawnNumbers
	if drawn == nil {
		drawn = []int{}
	}
	return store.Document{
		"status":       s.Status,
		"cards":        s.Cards,
		"drawnNumbers": drawn,
		"winner":       winner,
		"startedAt":    s.StartedAt,
		"finishedAt":   finishedAt,
	}
}
