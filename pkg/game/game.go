package game

import (
	"time"

	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/cbodonnell/partyhub/pkg/store"
)

// Definition describes a playable game type.
type Definition struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Collection string `json:"collection"`
	MinPlayers int    `json:"minPlayers"`
}

const (
	Imposter = "imposter"
	Bingo    = "bingo"
	Quiz     = "quiz"
)

var definitions = []Definition{
	{ID: Imposter, Name: "Imposter", Collection: constants.ImposterRoomsCollection, MinPlayers: constants.ImposterMinPlayers},
	{ID: Bingo, Name: "Bingo", Collection: constants.BingoRoomsCollection, MinPlayers: constants.BingoMinPlayers},
	{ID: Quiz, Name: "Quiz", Collection: constants.QuizRoomsCollection, MinPlayers: constants.QuizMinPlayers},
}

// Definitions returns every registered game.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the game with the given id.
func Lookup(id string) (Definition, error) {
	for _, d := range definitions {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, types.ErrUnknownGame
}

// Deps are the collaborators shared by the session manager and every game machine.
// Build one at process start and pass it down.
type Deps struct {
	Store store.Store
	Rand  random.Source
	Now   func() time.Time
}

type NewDepsOptions struct {
	Store store.Store
	// Rand defaults to a time-seeded source
	Rand random.Source
	// Now defaults to time.Now
	Now func() time.Time
}

func NewDeps(opts NewDepsOptions) Deps {
	d := Deps{
		Store: opts.Store,
		Rand:  opts.Rand,
		Now:   opts.Now,
	}
	if d.Rand == nil {
		d.Rand = random.NewSource(0)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Millis returns the current time as epoch milliseconds, the persisted timestamp format.
func (d Deps) Millis() int64 {
	return d.Now().UnixMilli()
}
