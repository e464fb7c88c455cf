package quiz

import (
	"context"
	"fmt"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/store"
)

type Machine struct {
	deps       game.Deps
	collection string
	pool       []Question
}

type NewMachineOptions struct {
	Deps game.Deps
	// Collection defaults to the quiz rooms collection
	Collection string
	// Pool defaults to DemoQuestions
	Pool []Question
}

func NewMachine(opts NewMachineOptions) *Machine {
	collection := opts.Collection
	if collection == "" {
		collection = constants.QuizRoomsCollection
	}
	pool := opts.Pool
	if len(pool) == 0 {
		pool = DemoQuestions
	}
	return &Machine{
		deps:       opts.Deps,
		collection: collection,
		pool:       pool,
	}
}

func (m *Machine) Collection() string {
	return m.collection
}

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

func (m *Machine) Start(ctx context.Context, roomID, actor string) error {
	return m.start(ctx, roomID, actor, types.StatusWaiting)
}

func (m *Machine) Restart(ctx context.Context, roomID, actor string) error {
	return m.start(ctx, roomID, actor, types.StatusActive, types.StatusFinished)
}

func (m *Machine) start(ctx context.Context, roomID, actor string, allowed ...types.Status) error {
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
		next, err := Start(st, m.pool, m.deps.Rand, m.deps.Millis())
		if err != nil {
			return err
		}
		return tx.Update(m.collection, roomID, next.payload())
	})
	if err != nil {
		return fmt.Errorf("failed to start quiz room %s: %w", roomID, err)
	}
	return nil
}

// Advance moves the room to its next phase. Host only.
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
		log.Debug("Quiz room %s: %s -> %s (question %d)", roomID, st.Phase, next.Phase, next.CurrentQuestionIndex)
		return tx.Update(m.collection, roomID, next.payload())
	})
	if err != nil {
		return fmt.Errorf("failed to advance quiz room %s: %w", roomID, err)
	}
	return nil
}

// SubmitAnswer records the player's option for the current question.
func (m *Machine) SubmitAnswer(ctx context.Context, st State, player string, option int) error {
	if err := CanAnswer(st, player, option); err != nil {
		return err
	}
	err := m.deps.Store.MergeWrite(ctx, m.collection, st.ID, store.Document{
		"answers": map[string]int{player: option},
	})
	if err != nil {
		return fmt.Errorf("failed to write to quiz room %s: %w", st.ID, err)
	}
	return nil
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
