package imposter

import (
	"sort"
	"strings"

	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
)

// Setup deals a new game to the players of st: one random pair, one random imposter.
func Setup(st State, pairs []WordPair, setID string, src random.Source, now int64) (State, error) {
	if len(st.Players) < constants.ImposterMinPlayers {
		return State{}, types.Preconditionf(types.ErrNotEnoughPlayers, "need at least %d", constants.ImposterMinPlayers)
	}
	pair, ok := random.Pick(src, pairs)
	if !ok {
		return State{}, types.Precondition(types.ErrNoWordPairs)
	}
	imposterIndex := src.Intn(len(st.Players))

	next := State{Room: st.Room}
	next.Status = types.StatusActive
	next.Word = pair.Crew
	next.ImposterWord = pair.Imposter
	next.Roles = make(map[string]Role, len(st.Players))
	next.Clues = make(map[string]string, len(st.Players))
	for i, p := range st.Players {
		if i == imposterIndex {
			next.Roles[p.ID] = RoleImposter
			next.Clues[p.ID] = pair.Imposter
			continue
		}
		next.Roles[p.ID] = RolePlayer
		next.Clues[p.ID] = pair.Crew
	}
	next.Phase = PhaseClue
	next.Round = 1
	next.CluesGiven = map[string]string{}
	next.Votes = map[string]string{}
	next.Eliminated = []string{}
	next.SelectedSetID = setID
	next.StartedAt = now
	return next, nil
}

// Advance moves the game one phase forward if every living player has acted.
func Advance(st State, now int64) (State, error) {
	if st.Status != types.StatusActive {
		return State{}, types.Preconditionf(types.ErrWrongStatus, "room is %s", st.Status)
	}
	next := st
	next.CluesGiven = copyMap(st.CluesGiven)
	next.Votes = copyMap(st.Votes)
	next.Eliminated = append([]string{}, st.Eliminated...)

	switch st.Phase {
	case PhaseClue:
		if missing := missingFrom(st.Alive(), st.CluesGiven); len(missing) > 0 {
			return State{}, types.Preconditionf(types.ErrNotAllSubmitted, "waiting for clues from %s", strings.Join(missing, ", "))
		}
		next.Phase = PhaseVote
		next.Votes = map[string]string{}
	case PhaseVote:
		if missing := missingFrom(st.Alive(), st.Votes); len(missing) > 0 {
			return State{}, types.Preconditionf(types.ErrNotAllSubmitted, "waiting for votes from %s", strings.Join(missing, ", "))
		}
		next.Reveal = ""
		if target, ok := TallyVotes(st.Votes); ok {
			next.Eliminated = append(next.Eliminated, target)
			next.Reveal = target
		}
		if winner := CheckWinner(next); winner != WinnerNone {
			next.end(winner, now)
		} else {
			next.Phase = PhaseReveal
		}
	case PhaseReveal:
		next.Phase = PhaseClue
		next.Round = st.Round + 1
		next.CluesGiven = map[string]string{}
		next.Votes = map[string]string{}
		next.Reveal = ""
	case PhaseEnd:
		return State{}, types.Precondition(types.ErrGameOver)
	default:
		return State{}, types.Preconditionf(types.ErrWrongPhase, "unknown phase %q", st.Phase)
	}
	return next, nil
}

func (s *State) end(winner Winner, now int64) {
	s.Winner = winner
	s.Phase = PhaseEnd
	s.Status = types.StatusFinished
	s.FinishedAt = now
}

// TallyVotes returns the single player with the most votes. ok is false on a tie.
func TallyVotes(votes map[string]string) (target string, ok bool) {
	tally := map[string]int{}
	for _, t := range votes {
		if t != "" {
			tally[t]++
		}
	}
	max := 0
	leaders := []string{}
	for t, n := range tally {
		switch {
		case n > max:
			max = n
			leaders = []string{t}
		case n == max:
			leaders = append(leaders, t)
		}
	}
	if len(leaders) != 1 {
		return "", false
	}
	return leaders[0], true
}

// CheckWinner evaluates the win condition after eliminations.
func CheckWinner(st State) Winner {
	imposter := st.ImposterID()
	if imposter == "" {
		return WinnerNone
	}
	if st.IsEliminated(imposter) {
		return WinnerCrew
	}
	if len(st.Alive()) <= constants.ImposterLastAliveCount {
		return WinnerImposter
	}
	return WinnerNone
}

// GuessMatches compares a guess with the crew word, ignoring case and surrounding space.
func GuessMatches(guess, word string) bool {
	g := strings.ToLower(strings.TrimSpace(guess))
	return g != "" && g == strings.ToLower(strings.TrimSpace(word))
}

// ResolveGuess ends the game in the imposter's favour if self is the imposter and
// the stored guess names the crew word. ok is false when nothing changes.
func ResolveGuess(st State, self string, now int64) (next State, ok bool) {
	if st.Winner != WinnerNone || st.Phase == PhaseEnd || st.ImposterGuess == nil {
		return State{}, false
	}
	if st.Roles[self] != RoleImposter || st.ImposterGuess.By != self {
		return State{}, false
	}
	if !GuessMatches(st.ImposterGuess.Guess, st.Word) {
		return State{}, false
	}
	next = st
	next.end(WinnerImposter, now)
	return next, true
}

// CanGiveClue checks that player may submit a clue now.
func CanGiveClue(st State, player string) error {
	if err := requireLiving(st, player); err != nil {
		return err
	}
	if st.Phase != PhaseClue {
		return types.Preconditionf(types.ErrWrongPhase, "phase is %s", st.Phase)
	}
	if _, ok := st.CluesGiven[player]; ok {
		return types.Precondition(types.ErrAlreadySubmitted)
	}
	return nil
}

// CanVote checks that player may vote for target now.
func CanVote(st State, player, target string) error {
	if err := requireLiving(st, player); err != nil {
		return err
	}
	if st.Phase != PhaseVote {
		return types.Preconditionf(types.ErrWrongPhase, "phase is %s", st.Phase)
	}
	if _, ok := st.Votes[player]; ok {
		return types.Precondition(types.ErrAlreadySubmitted)
	}
	if !st.HasPlayer(target) || st.IsEliminated(target) {
		return types.Precondition(types.ErrInvalidTarget)
	}
	return nil
}

// CanGuess checks that player may guess the crew word now.
func CanGuess(st State, player string) error {
	if err := requireLiving(st, player); err != nil {
		return err
	}
	if st.Roles[player] != RoleImposter {
		return types.Precondition(types.ErrNotImposter)
	}
	return nil
}

func requireLiving(st State, player string) error {
	if st.Status != types.StatusActive || st.Phase == PhaseEnd {
		if st.Phase == PhaseEnd || st.Status == types.StatusFinished {
			return types.Precondition(types.ErrGameOver)
		}
		return types.Preconditionf(types.ErrWrongStatus, "room is %s", st.Status)
	}
	if !st.HasPlayer(player) {
		return types.Precondition(types.ErrNotAPlayer)
	}
	if st.IsEliminated(player) {
		return types.Precondition(types.ErrEliminated)
	}
	return nil
}

func missingFrom(ids []string, submitted map[string]string) []string {
	missing := []string{}
	for _, id := range ids {
		if submitted[id] == "" {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
