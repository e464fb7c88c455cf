package quiz

import (
	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
)

// Start fixes a random selection of questions from pool and zeroes every player's score.
func Start(st State, pool []Question, src random.Source, now int64) (State, error) {
	if len(st.Players) < constants.QuizMinPlayers {
		return State{}, types.Preconditionf(types.ErrNotEnoughPlayers, "need at least %d", constants.QuizMinPlayers)
	}
	pool = validQuestions(pool)
	if len(pool) == 0 {
		return State{}, types.Precondition(types.ErrNoQuestions)
	}
	questions := random.Shuffle(src, pool)
	if len(questions) > constants.QuizQuestionsPerGame {
		questions = questions[:constants.QuizQuestionsPerGame]
	}

	next := State{Room: st.Room}
	next.Status = types.StatusActive
	next.Questions = questions
	next.CurrentQuestionIndex = 0
	next.Phase = PhaseQuestion
	next.Answers = map[string]int{}
	next.Scores = make(map[string]int, len(st.Players))
	for _, p := range st.Players {
		next.Scores[p.ID] = 0
	}
	next.StartedAt = now
	return next, nil
}

// Advance moves the quiz one phase forward, scoring the answers when leaving the answer phase.
func Advance(st State, now int64) (State, error) {
	if st.Status != types.StatusActive {
		return State{}, types.Preconditionf(types.ErrWrongStatus, "room is %s", st.Status)
	}
	next := st
	next.Scores = copyScores(st.Scores)

	switch st.Phase {
	case PhaseQuestion:
		next.Phase = PhaseAnswer
	case PhaseAnswer:
		next.Scores = Score(st)
		next.Phase = PhaseLeaderboard
	case PhaseLeaderboard:
		if st.IsLast() {
			next.Phase = PhaseEnd
			next.Status = types.StatusFinished
			next.FinishedAt = now
			break
		}
		next.CurrentQuestionIndex = st.CurrentQuestionIndex + 1
		next.Phase = PhaseQuestion
		next.Answers = map[string]int{}
	default:
		return State{}, types.Preconditionf(types.ErrWrongPhase, "cannot advance from %q", st.Phase)
	}
	return next, nil
}

// Score returns the scores after crediting one point to every player whose
// answer matches the current question.
func Score(st State) map[string]int {
	scores := copyScores(st.Scores)
	q, ok := st.Current()
	if !ok {
		return scores
	}
	for _, p := range st.Players {
		if a, ok := st.Answers[p.ID]; ok && a == q.CorrectIndex {
			scores[p.ID]++
		}
	}
	return scores
}

// CanAnswer checks an answer submission against the caller's copy of the room.
func CanAnswer(st State, player string, option int) error {
	if st.Status != types.StatusActive {
		return types.Preconditionf(types.ErrWrongStatus, "room is %s", st.Status)
	}
	if st.Phase != PhaseAnswer {
		return types.Preconditionf(types.ErrWrongPhase, "answers are not open in %q", st.Phase)
	}
	if !st.HasPlayer(player) {
		return types.Precondition(types.ErrNotAPlayer)
	}
	if _, ok := st.Answers[player]; ok {
		return types.Precondition(types.ErrAlreadySubmitted)
	}
	q, ok := st.Current()
	if !ok {
		return types.Precondition(types.ErrNoQuestions)
	}
	if option < 0 || option >= len(q.Options) {
		return types.Preconditionf(types.ErrInvalidAnswer, "option %d", option)
	}
	return nil
}
