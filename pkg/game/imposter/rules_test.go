package imposter

import (
	"testing"

	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(ids ...string) types.Room {
	room := types.Room{ID: "r1", Status: types.StatusWaiting}
	for _, id := range ids {
		room.Players = append(room.Players, types.Player{ID: id, Name: "name-" + id})
	}
	if len(ids) > 0 {
		room.Host = ids[0]
	}
	return room
}

func activeState(t *testing.T, imposterIndex int, ids ...string) State {
	t.Helper()
	st, err := Setup(State{Room: newRoom(ids...)}, DefaultWordPairs, "", random.NewSequence(0, imposterIndex), 100)
	require.NoError(t, err)
	return st
}

func TestSetup(t *testing.T) {
	st, err := Setup(State{Room: newRoom("a", "b", "c", "d")}, DefaultWordPairs, "set-1", random.NewSequence(1, 2), 100)
	require.NoError(t, err)

	assert.Equal(t, types.StatusActive, st.Status)
	assert.Equal(t, "Apfel", st.Word)
	assert.Equal(t, "Birne", st.ImposterWord)
	assert.Equal(t, "c", st.ImposterID())
	assert.Equal(t, map[string]Role{"a": RolePlayer, "b": RolePlayer, "c": RoleImposter, "d": RolePlayer}, st.Roles)
	assert.Equal(t, "Birne", st.Secret("c"))
	assert.Equal(t, "Apfel", st.Secret("a"))
	assert.Equal(t, PhaseClue, st.Phase)
	assert.Equal(t, 1, st.Round)
	assert.Empty(t, st.Eliminated)
	assert.Empty(t, st.Votes)
	assert.Empty(t, st.CluesGiven)
	assert.Equal(t, WinnerNone, st.Winner)
	assert.Equal(t, "set-1", st.SelectedSetID)
	assert.Equal(t, int64(100), st.StartedAt)
}

func TestSetup_Errors(t *testing.T) {
	_, err := Setup(State{Room: newRoom("a", "b")}, DefaultWordPairs, "", random.NewSource(1), 0)
	assert.ErrorIs(t, err, types.ErrNotEnoughPlayers)
	assert.True(t, types.IsPrecondition(err))

	_, err = Setup(State{Room: newRoom("a", "b", "c")}, nil, "", random.NewSource(1), 0)
	assert.ErrorIs(t, err, types.ErrNoWordPairs)
}

func TestChoosePairs(t *testing.T) {
	tests := []struct {
		name string
		set  *WordSet
		want []WordPair
	}{
		{
			name: "no set",
			set:  nil,
			want: DefaultWordPairs,
		},
		{
			name: "one valid pair falls back",
			set:  &WordSet{Words: []interface{}{[]interface{}{"Sonne", "Mond"}, "flat", []interface{}{"a"}}},
			want: DefaultWordPairs,
		},
		{
			name: "valid pairs are used",
			set: &WordSet{Words: []interface{}{
				[]interface{}{"Sonne", "Mond"},
				[]interface{}{"a", "b", "c"},
				[]interface{}{"Tag", "Nacht"},
			}},
			want: []WordPair{{Crew: "Sonne", Imposter: "Mond"}, {Crew: "Tag", Imposter: "Nacht"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChoosePairs(tt.set))
		})
	}
}

func TestTallyVotes(t *testing.T) {
	tests := []struct {
		name   string
		votes  map[string]string
		want   string
		wantOK bool
	}{
		{name: "majority", votes: map[string]string{"a": "x", "b": "x", "c": "y"}, want: "x", wantOK: true},
		{name: "tie", votes: map[string]string{"a": "x", "b": "y"}, want: "", wantOK: false},
		{name: "three way tie", votes: map[string]string{"a": "x", "b": "y", "c": "z"}, wantOK: false},
		{name: "no votes", votes: map[string]string{}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TallyVotes(tt.votes)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvance_ClueToVote(t *testing.T) {
	st := activeState(t, 2, "a", "b", "c")

	_, err := Advance(st, 0)
	assert.ErrorIs(t, err, types.ErrNotAllSubmitted)

	st.CluesGiven = map[string]string{"a": "sour", "b": "green", "c": "round"}
	st.Votes = map[string]string{"stale": "x"}
	next, err := Advance(st, 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseVote, next.Phase)
	assert.Empty(t, next.Votes)
}

func TestAdvance_Vote(t *testing.T) {
	tests := []struct {
		name           string
		players        []string
		imposter       int
		eliminated     []string
		votes          map[string]string
		wantPhase      Phase
		wantWinner     Winner
		wantReveal     string
		wantEliminated []string
	}{
		{
			name:           "majority eliminates a crew member",
			players:        []string{"a", "b", "c", "d", "e"},
			imposter:       4,
			votes:          map[string]string{"a": "b", "b": "c", "c": "b", "d": "b", "e": "a"},
			wantPhase:      PhaseReveal,
			wantReveal:     "b",
			wantEliminated: []string{"b"},
		},
		{
			name:           "tie eliminates nobody",
			players:        []string{"a", "b", "c", "d"},
			imposter:       3,
			votes:          map[string]string{"a": "b", "b": "a", "c": "b", "d": "a"},
			wantPhase:      PhaseReveal,
			wantReveal:     "",
			wantEliminated: []string{},
		},
		{
			name:           "imposter eliminated means crew wins",
			players:        []string{"a", "b", "c"},
			imposter:       2,
			votes:          map[string]string{"a": "c", "b": "c", "c": "a"},
			wantPhase:      PhaseEnd,
			wantWinner:     WinnerCrew,
			wantReveal:     "c",
			wantEliminated: []string{"c"},
		},
		{
			name:           "imposter survives with two left",
			players:        []string{"a", "b", "c", "d"},
			imposter:       3,
			eliminated:     []string{"a"},
			votes:          map[string]string{"b": "c", "c": "b", "d": "b"},
			wantPhase:      PhaseEnd,
			wantWinner:     WinnerImposter,
			wantReveal:     "b",
			wantEliminated: []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := activeState(t, tt.imposter, tt.players...)
			st.Phase = PhaseVote
			st.Eliminated = append([]string{}, tt.eliminated...)
			st.Votes = tt.votes

			next, err := Advance(st, 500)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, next.Phase)
			assert.Equal(t, tt.wantWinner, next.Winner)
			assert.Equal(t, tt.wantReveal, next.Reveal)
			assert.Equal(t, tt.wantEliminated, next.Eliminated)
			if tt.wantWinner != WinnerNone {
				assert.Equal(t, types.StatusFinished, next.Status)
				assert.Equal(t, int64(500), next.FinishedAt)
			} else {
				assert.Equal(t, types.StatusActive, next.Status)
			}
			// the input state is untouched
			assert.Equal(t, tt.eliminated, nilIfEmpty(st.Eliminated))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestAdvance_VoteWaitsForLivingPlayers(t *testing.T) {
	st := activeState(t, 3, "a", "b", "c", "d")
	st.Phase = PhaseVote
	st.Eliminated = []string{"a"}
	st.Votes = map[string]string{"b": "c", "c": "b"}

	_, err := Advance(st, 0)
	assert.ErrorIs(t, err, types.ErrNotAllSubmitted)
}

func TestAdvance_RevealToClue(t *testing.T) {
	st := activeState(t, 0, "a", "b", "c", "d")
	st.Phase = PhaseReveal
	st.Reveal = "b"
	st.Eliminated = []string{"b"}
	st.CluesGiven = map[string]string{"a": "x"}
	st.Votes = map[string]string{"a": "b"}

	next, err := Advance(st, 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseClue, next.Phase)
	assert.Equal(t, 2, next.Round)
	assert.Empty(t, next.CluesGiven)
	assert.Empty(t, next.Votes)
	assert.Equal(t, "", next.Reveal)
	assert.Equal(t, []string{"b"}, next.Eliminated)
}

func TestAdvance_Ended(t *testing.T) {
	st := activeState(t, 0, "a", "b", "c")
	st.Phase = PhaseEnd
	st.Status = types.StatusFinished
	_, err := Advance(st, 0)
	assert.ErrorIs(t, err, types.ErrWrongStatus)

	st.Status = types.StatusActive
	_, err = Advance(st, 0)
	assert.ErrorIs(t, err, types.ErrGameOver)
}

func TestGuessMatches(t *testing.T) {
	assert.True(t, GuessMatches("  zitrone ", "Zitrone"))
	assert.False(t, GuessMatches("Limette", "Zitrone"))
	assert.False(t, GuessMatches("   ", ""))
}

func TestResolveGuess(t *testing.T) {
	st := activeState(t, 2, "a", "b", "c")
	st.ImposterGuess = &Guess{Guess: "ZITRONE", By: "c"}

	_, ok := ResolveGuess(st, "a", 10)
	assert.False(t, ok, "only the imposter's own client resolves the guess")

	next, ok := ResolveGuess(st, "c", 10)
	require.True(t, ok)
	assert.Equal(t, WinnerImposter, next.Winner)
	assert.Equal(t, PhaseEnd, next.Phase)
	assert.Equal(t, types.StatusFinished, next.Status)

	st.ImposterGuess = &Guess{Guess: "Limette", By: "c"}
	_, ok = ResolveGuess(st, "c", 10)
	assert.False(t, ok)
}

func TestCanSubmit(t *testing.T) {
	st := activeState(t, 2, "a", "b", "c", "d")
	st.Eliminated = []string{"d"}
	st.CluesGiven = map[string]string{"a": "x"}

	assert.NoError(t, CanGiveClue(st, "b"))
	assert.ErrorIs(t, CanGiveClue(st, "a"), types.ErrAlreadySubmitted)
	assert.ErrorIs(t, CanGiveClue(st, "d"), types.ErrEliminated)
	assert.ErrorIs(t, CanGiveClue(st, "z"), types.ErrNotAPlayer)
	assert.ErrorIs(t, CanVote(st, "a", "b"), types.ErrWrongPhase)

	st.Phase = PhaseVote
	assert.NoError(t, CanVote(st, "a", "b"))
	assert.ErrorIs(t, CanVote(st, "a", "d"), types.ErrInvalidTarget)

	assert.NoError(t, CanGuess(st, "c"))
	assert.ErrorIs(t, CanGuess(st, "a"), types.ErrNotImposter)

	st.Phase = PhaseEnd
	assert.ErrorIs(t, CanGuess(st, "c"), types.ErrGameOver)
}
