package types

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomDisappeared   = errors.New("room disappeared")
	ErrNoOpenRoom        = errors.New("no open room")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNotAPlayer        = errors.New("not a player in this room")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrWrongStatus       = errors.New("wrong room status")
	ErrWrongPhase        = errors.New("wrong phase")
	ErrNotAllSubmitted   = errors.New("not every player has submitted")
	ErrAlreadySubmitted  = errors.New("already submitted")
	ErrEliminated        = errors.New("player is eliminated")
	ErrGameOver          = errors.New("game is over")
	ErrInvalidTarget     = errors.New("invalid vote target")
	ErrInvalidAnswer     = errors.New("invalid answer")
	ErrEmptySubmission   = errors.New("empty submission")
	ErrNoWordPairs       = errors.New("no word pairs")
	ErrNoCard            = errors.New("no card")
	ErrNoBingo           = errors.New("no bingo")
	ErrNotImposter       = errors.New("only the imposter can guess")
	ErrNoQuestions       = errors.New("no questions")
	ErrUnknownGame       = errors.New("unknown game")
	ErrMissingIdentity   = errors.New("missing player identity")
	ErrCorruptRoomRecord = errors.New("corrupt room record")
)

// PreconditionError is an action rejected against the current room state.
// It never has partial effects.
type PreconditionError struct {
	Err    error
	Detail string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func Precondition(err error) error {
	return &PreconditionError{Err: err}
}

func Preconditionf(err error, format string, args ...interface{}) error {
	return &PreconditionError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err is a rejected action rather than an infrastructure failure.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}
