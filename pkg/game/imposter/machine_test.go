package imposter

import (
	"context"
	"testing"
	"time"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/session"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps(src random.Source) game.Deps {
	return game.NewDeps(game.NewDepsOptions{
		Store: store.NewMemory(),
		Rand:  src,
		Now:   func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
}

func TestMachine_EndToEnd(t *testing.T) {
	ctx := context.Background()
	// pair 0 (Zitrone/Limette), imposter is the third player
	deps := newTestDeps(random.NewSequence(0, 2))
	sessions := session.NewManager(session.NewManagerOptions{Deps: deps, Collection: constants.ImposterRoomsCollection})
	machine := NewMachine(NewMachineOptions{Deps: deps})

	alice := types.Player{ID: "alice", Name: "Alice"}
	bob := types.Player{ID: "bob", Name: "Bob"}
	carol := types.Player{ID: "carol", Name: "Carol"}

	roomID, err := sessions.Create(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, sessions.Join(ctx, roomID, bob))
	require.NoError(t, sessions.Join(ctx, roomID, carol))

	err = machine.Start(ctx, roomID, "bob", "")
	assert.ErrorIs(t, err, types.ErrNotHost)

	require.NoError(t, machine.Start(ctx, roomID, "alice", ""))

	st, err := machine.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, roomID, st.ID)
	assert.Equal(t, types.StatusActive, st.Status)
	assert.Equal(t, "carol", st.ImposterID())
	assert.Equal(t, "Limette", st.Secret("carol"))

	for id, clue := range map[string]string{"alice": "sauer", "bob": "gelb", "carol": "grün"} {
		require.NoError(t, machine.SubmitClue(ctx, st, id, clue))
	}
	require.NoError(t, machine.Advance(ctx, roomID, "alice"))

	st, err = machine.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, PhaseVote, st.Phase)
	assert.Len(t, st.CluesGiven, 3)

	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, machine.SubmitVote(ctx, st, id, "carol"))
	}
	require.NoError(t, machine.Advance(ctx, roomID, "alice"))

	st, err = machine.Load(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, PhaseEnd, st.Phase)
	assert.Equal(t, WinnerCrew, st.Winner)
	assert.Equal(t, "carol", st.Reveal)
	assert.Equal(t, types.StatusFinished, st.Status)
	assert.Equal(t, "alice", st.Host)
	assert.True(t, st.HasPlayer(st.Host))
}

func TestMachine_StartWithWordSet(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(random.NewSequence(1, 0))
	machine := NewMachine(NewMachineOptions{Deps: deps})
	seedRoom(t, deps, "r1", "a", "b", "c")

	require.NoError(t, deps.Store.MergeWrite(ctx, constants.WordSetsCollection, "set-1", store.Document{
		"title": "Himmel",
		"words": []interface{}{[]string{"Sonne", "Mond"}, []string{"Tag", "Nacht"}},
	}))

	require.NoError(t, machine.Start(ctx, "r1", "a", "set-1"))

	st, err := machine.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Tag", st.Word)
	assert.Equal(t, "Nacht", st.ImposterWord)
	assert.Equal(t, "set-1", st.SelectedSetID)
	assert.Equal(t, "a", st.ImposterID())
}

func TestMachine_StartPreconditions(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(random.NewSource(1))
	machine := NewMachine(NewMachineOptions{Deps: deps})

	err := machine.Start(ctx, "missing", "a", "")
	assert.ErrorIs(t, err, types.ErrRoomNotFound)

	seedRoom(t, deps, "r1", "a", "b")
	err = machine.Start(ctx, "r1", "a", "")
	assert.ErrorIs(t, err, types.ErrNotEnoughPlayers)

	st, err := machine.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusWaiting, st.Status, "failed start has no effect")
}

func TestMachine_Restart(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(random.NewSequence(0, 0))
	machine := NewMachine(NewMachineOptions{Deps: deps})
	seedRoom(t, deps, "r1", "a", "b", "c")

	err := machine.Restart(ctx, "r1", "a", "")
	assert.ErrorIs(t, err, types.ErrWrongStatus)

	require.NoError(t, machine.Start(ctx, "r1", "a", ""))
	st, err := machine.Load(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, machine.SubmitGuess(ctx, st, "a", "zitrone"))
	st, err = machine.Load(ctx, "r1")
	require.NoError(t, err)
	ended, err := machine.EvaluateGuess(ctx, st, "a")
	require.NoError(t, err)
	require.True(t, ended)

	require.NoError(t, machine.Restart(ctx, "r1", "a", ""))
	st, err = machine.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, st.Status)
	assert.Equal(t, PhaseClue, st.Phase)
	assert.Equal(t, WinnerNone, st.Winner)
	assert.Nil(t, st.ImposterGuess)
	assert.Zero(t, st.FinishedAt)
}

func TestMachine_WatchGuesses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps := newTestDeps(random.NewSequence(0, 1))
	machine := NewMachine(NewMachineOptions{Deps: deps})
	seedRoom(t, deps, "r1", "a", "b", "c")
	require.NoError(t, machine.Start(ctx, "r1", "a", ""))

	mirror, err := rooms.Watch[State](ctx, deps.Store, machine.Collection(), "r1")
	require.NoError(t, err)
	defer mirror.Close()
	go machine.WatchGuesses(ctx, mirror, "b")

	st, err := machine.Load(ctx, "r1")
	require.NoError(t, err)
	require.NoError(t, machine.SubmitGuess(ctx, st, "b", " ZITRONE "))

	require.Eventually(t, func() bool {
		st, err := machine.Load(ctx, "r1")
		return err == nil && st.Winner == WinnerImposter && st.Phase == PhaseEnd
	}, 2*time.Second, 10*time.Millisecond)
}

func seedRoom(t *testing.T, deps game.Deps, roomID string, ids ...string) {
	t.Helper()
	sessions := session.NewManager(session.NewManagerOptions{Deps: deps, Collection: constants.ImposterRoomsCollection})
	for _, id := range ids {
		require.NoError(t, sessions.Join(context.Background(), roomID, types.Player{ID: id, Name: id}))
	}
}
