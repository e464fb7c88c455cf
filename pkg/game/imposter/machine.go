package imposter

import (
	"context"
	"fmt"
	"strings"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/store"
)

// Machine runs imposter rooms against the store. Host transitions are transactional;
// player submissions are merge-writes under the player's own key, checked against
// the caller's copy of the room.
type Machine struct {
	deps       game.Deps
	collection string
}

type NewMachineOptions struct {
	Deps game.Deps
	// Collection defaults to the imposter rooms collection
	Collection string
}

func NewMachine(opts NewMachineOptions) *Machine {
	collection := opts.Collection
	if collection == "" {
		collection = constants.ImposterRoomsCollection
	}
	return &Machine{
		deps:       opts.Deps,
		collection: collection,
	}
}

func (m *Machine) Collection() string {
	return m.collection
}

// Load reads the current state of a room.
func (m *Machine) Load(ctx context.Context, roomID string) (State, error) {
	snap, err := m.deps.Store.Get(ctx, m.collection, roomID)
	if store.IsNotFound(err) {
		return State{}, types.Precondition(types.ErrRoomNotFound)
	}
	if err != nil {
		return State{}, err
	}
	st := State{}
	if err := snap.DataTo(&st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Start deals the first game of a waiting room. setID optionally names a word set.
func (m *Machine) Start(ctx context.Context, roomID, actor, setID string) error {
	return m.setup(ctx, roomID, actor, setID, types.StatusWaiting)
}

// Restart deals a fresh game in a room that has already played.
func (m *Machine) Restart(ctx context.Context, roomID, actor, setID string) error {
	return m.setup(ctx, roomID, actor, setID, types.StatusActive, types.StatusFinished)
}

func (m *Machine) setup(ctx context.Context, roomID, actor, setID string, allowed ...types.Status) error {
	err := m.deps.Store.Transact(ctx, func(ctx context.Context, tx store.Tx) error {
		st, err := m.read(tx, roomID)
		if err != nil {
			return err
		}
		if err := st.RequireHost(actor); err != nil {
			return err
		}
		if err := st.RequireStatus(allowed...); err != nil {
			return err
		}

		var set *WordSet
		if setID != "" {
			snap, err := tx.Get(constants.WordSetsCollection, setID)
			if err != nil {
				return err
			}
			if snap.Exists {
				set = &WordSet{}
				if err := snap.DataTo(set); err != nil {
					return err
				}
			} else {
				log.Warn("Word set %s not found, using default pairs", setID)
			}
		}

		next, err := Setup(st, ChoosePairs(set), setID, m.deps.Rand, m.deps.Millis())
		if err != nil {
			return err
		}
		return tx.Update(m.collection, roomID, next.payload())
	})
	if err != nil {
		return fmt.Errorf("failed to start imposter room %s: %w", roomID, err)
	}
	return nil
}

// Advance moves the room to its next phase. Only the host may advance.
func (m *Machine) Advance(ctx context.Context, roomID, actor string) error {
	err := m.deps.Store.Transact(ctx, func(ctx context.Context, tx store.Tx) error {
		st, err := m.read(tx, roomID)
		if err != nil {
			return err
		}
		if err := st.RequireHost(actor); err != nil {
			return err
		}
		next, err := Advance(st, m.deps.Millis())
		if err != nil {
			return err
		}
		log.Debug("Imposter room %s: %s -> %s", roomID, st.Phase, next.Phase)
		return tx.Update(m.collection, roomID, next.payload())
	})
	if err != nil {
		return fmt.Errorf("failed to advance imposter room %s: %w", roomID, err)
	}
	return nil
}

// SubmitClue records the player's clue for this round.
func (m *Machine) SubmitClue(ctx context.Context, st State, player, clue string) error {
	clue = strings.TrimSpace(clue)
	if clue == "" {
		return types.Precondition(types.ErrEmptySubmission)
	}
	if err := CanGiveClue(st, player); err != nil {
		return err
	}
	return m.merge(ctx, st.ID, store.Document{
		"cluesGiven": map[string]string{player: clue},
	})
}

// SubmitVote records the player's vote for this round.
func (m *Machine) SubmitVote(ctx context.Context, st State, player, target string) error {
	if err := CanVote(st, player, target); err != nil {
		return err
	}
	return m.merge(ctx, st.ID, store.Document{
		"votes": map[string]string{player: target},
	})
}

// SubmitGuess records the imposter's guess of the crew word.
func (m *Machine) SubmitGuess(ctx context.Context, st State, player, guess string) error {
	if strings.TrimSpace(guess) == "" {
		return types.Precondition(types.ErrEmptySubmission)
	}
	if err := CanGuess(st, player); err != nil {
		return err
	}
	return m.merge(ctx, st.ID, store.Document{
		"imposterGuess": Guess{Guess: guess, By: player},
	})
}

// EvaluateGuess commits the imposter's win when self is the imposter and the stored
// guess is right. It reports whether the game was ended.
func (m *Machine) EvaluateGuess(ctx context.Context, st State, self string) (bool, error) {
	next, ok := ResolveGuess(st, self, m.deps.Millis())
	if !ok {
		return false, nil
	}
	err := m.merge(ctx, st.ID, store.Document{
		"winner":     next.Winner,
		"phase":      next.Phase,
		"status":     next.Status,
		"finishedAt": next.FinishedAt,
	})
	if err != nil {
		return false, err
	}
	log.Info("Imposter %s guessed the word in room %s", self, st.ID)
	return true, nil
}

// WatchGuesses evaluates every update of the mirror on behalf of self until the mirror stops.
func (m *Machine) WatchGuesses(ctx context.Context, mirror *rooms.Mirror[State], self string) {
	for view := range mirror.Updates() {
		if !view.Exists {
			continue
		}
		if _, err := m.EvaluateGuess(ctx, view.Room, self); err != nil {
			log.Error("Failed to evaluate imposter guess in room %s: %v", view.ID, err)
		}
	}
}

func (m *Machine) read(tx store.Tx, roomID string) (State, error) {
	snap, err := tx.Get(m.collection, roomID)
	if err != nil {
		return State{}, err
	}
	if !snap.Exists {
		return State{}, types.Precondition(types.ErrRoomNotFound)
	}
	st := State{}
	if err := snap.DataTo(&st); err != nil {
		return State{}, types.Preconditionf(types.ErrCorruptRoomRecord, "%v", err)
	}
	return st, nil
}

func (m *Machine) merge(ctx context.Context, roomID string, doc store.Document) error {
	if err := m.deps.Store.MergeWrite(ctx, m.collection, roomID, doc); err != nil {
		return fmt.Errorf("failed to write to imposter room %s: %w", roomID, err)
	}
	return nil
}
