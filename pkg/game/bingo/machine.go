package bingo

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
}

type NewMachineOptions struct {
	Deps game.Deps
	// Collection defaults to the bingo rooms collection
	Collection string
}

func NewMachine(opts NewMachineOptions) *Machine {
	collection := opts.Collection
	if collection == "" {
		collection = constants.BingoRoomsCollection
	}
	return &Machine{
		deps:       opts.Deps,
		collection: collection,
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

// Start deals cards in a waiting room. Host only.
func (m *Machine) Start(ctx context.Context, roomID, actor string) error {
	return m.start(ctx, roomID, actor, types.StatusWaiting)
}

// Restart deals new cards in a room that has already played. Host only.
func (m *Machine) Restart(ctx context.Context, roomID, actor string) error {
	return m.start(ctx, roomID, actor, types.StatusActive, types.StatusFinished)
}

func (m *Machine) start(ctx context.Context, roomID, actor string, allowed ...types.Status) error {
	return m.transact(ctx, roomID, "start", func(tx store.Tx, st State) error {
		if err := st.RequireHost(actor); err != nil {
			return err
		}
		if err := st.RequireStatus(allowed...); err != nil {
			return err
		}
		next, err := Start(st, m.deps.Rand, m.deps.Millis())
		if err != nil {
			return err
		}
		return tx.Update(m.collection, roomID, next.payload())
	})
}

// Draw appends a random undrawn number. Once all 75 are drawn it does nothing. Host only.
func (m *Machine) Draw(ctx context.Context, roomID, actor string) error {
	return m.transact(ctx, roomID, "draw in", func(tx store.Tx, st State) error {
		if err := st.RequireHost(actor); err != nil {
			return err
		}
		if err := st.RequireStatus(types.StatusActive); err != nil {
			return err
		}
		next, n, ok := Draw(st, m.deps.Rand)
		if !ok {
			log.Debug("Bingo room %s has no numbers left to draw", roomID)
			return nil
		}
		log.Debug("Bingo room %s drew %d", roomID, n)
		return tx.Update(m.collection, roomID, store.Document{
			"drawnNumbers": next.DrawnNumbers,
		})
	})
}

// Claim checks the player's card against the numbers drawn so far and, if it
// has a full line, ends the game with the player as winner.
func (m *Machine) Claim(ctx context.Context, roomID, player string) error {
	return m.transact(ctx, roomID, "claim in", func(tx store.Tx, st State) error {
		next, err := Claim(st, player, m.deps.Millis())
		if err != nil {
			return err
		}
		log.Info("Player %s won bingo room %s", player, roomID)
		return tx.Update(m.collection, roomID, store.Document{
			"winner":     next.Winner,
			"status":     next.Status,
			"finishedAt": next.FinishedAt,
		})
	})
}

func (m *Machine) transact(ctx context.Context, roomID, action string, fn func(tx store.Tx, st State) error) error {
	err := m.deps.Store.Transact(ctx, func(ctx context.Context, tx store.Tx) error {
		snap, err := tx.Get(m.collection, roomID)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return types.Precondition(types.ErrRoomNotFound)
		}
		st := State{}
		if err := snap.DataTo(&st); err != nil {
			return types.Preconditionf(types.ErrCorruptRoomRecord, "%v", err)
		}
		return fn(tx, st)
	})
	if err != nil {
		return fmt.Errorf("failed to %s bingo room %s: %w", action, roomID, err)
	}
	return nil
}
