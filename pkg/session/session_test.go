package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/game/types"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "testRooms"

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	clock := int64(1_000)
	var lock sync.Mutex
	st := store.NewMemory()
	deps := game.NewDeps(game.NewDepsOptions{
		Store: st,
		Rand:  random.NewSource(1),
		Now: func() time.Time {
			lock.Lock()
			defer lock.Unlock()
			clock++
			return time.UnixMilli(clock)
		},
	})
	return NewManager(NewManagerOptions{Deps: deps, Collection: testCollection}), st
}

func TestJoin_CreatesRoom(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	require.NoError(t, m.Join(ctx, "r1", types.Player{ID: "a", Name: "Anna"}))

	room, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", room.ID)
	assert.Equal(t, "a", room.Host)
	assert.Equal(t, types.StatusWaiting, room.Status)
	assert.Equal(t, []types.Player{{ID: "a", Name: "Anna"}}, room.Players)
	assert.NotZero(t, room.CreatedAt)
}

func TestJoin_Idempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Join(ctx, "r1", types.Player{ID: "a", Name: "Anna"}))
		require.NoError(t, m.Join(ctx, "r1", types.Player{ID: "b", Name: "Ben"}))
	}

	room, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, room.PlayerIDs())
	assert.Equal(t, "a", room.Host)
	assert.True(t, room.HasPlayer(room.Host))
}

func TestJoin_ConcurrentKeepsEveryPlayer(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Join(ctx, "r1", types.Player{ID: "host", Name: "Host"}))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- m.Join(ctx, "r1", types.Player{ID: id, Name: id})
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	room, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"host", "a", "b", "c", "d"}, room.PlayerIDs())
	assert.Equal(t, "host", room.Host)
}

func TestJoin_FillsMissingHost(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)
	require.NoError(t, st.MergeWrite(ctx, testCollection, "r1", store.Document{
		"players": []interface{}{map[string]interface{}{"id": "a", "name": "Anna"}},
	}))

	require.NoError(t, m.Join(ctx, "r1", types.Player{ID: "b", Name: "Ben"}))

	room, err := m.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "b", room.Host)
	assert.Equal(t, types.StatusWaiting, room.Status)
	assert.Equal(t, []string{"a", "b"}, room.PlayerIDs())
}

func TestJoin_MissingIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Join(context.Background(), "r1", types.Player{})
	assert.ErrorIs(t, err, types.ErrMissingIdentity)
	assert.True(t, types.IsPrecondition(err))
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	id1, err := m.Create(ctx, types.Player{ID: "a", Name: "Anna"})
	require.NoError(t, err)
	id2, err := m.Create(ctx, types.Player{ID: "a", Name: "Anna"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	room, err := m.Load(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "a", room.Host)
	assert.Equal(t, types.StatusWaiting, room.Status)
	assert.Len(t, room.Players, 1)
}

func TestSearchAndJoin(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	_, err := m.SearchAndJoin(ctx, types.Player{ID: "x", Name: "X"})
	assert.ErrorIs(t, err, types.ErrNoOpenRoom)

	older, err := m.Create(ctx, types.Player{ID: "a", Name: "Anna"})
	require.NoError(t, err)
	_, err = m.Create(ctx, types.Player{ID: "b", Name: "Ben"})
	require.NoError(t, err)

	// rooms that already started are not open
	started, err := m.Create(ctx, types.Player{ID: "c", Name: "Cleo"})
	require.NoError(t, err)
	require.NoError(t, st.MergeWrite(ctx, testCollection, started, store.Document{"status": "active"}))

	id, err := m.SearchAndJoin(ctx, types.Player{ID: "x", Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, older, id)

	room, err := m.Load(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "x"}, room.PlayerIDs())
}

func TestListOpen(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	a, err := m.Create(ctx, types.Player{ID: "a", Name: "Anna"})
	require.NoError(t, err)
	b, err := m.Create(ctx, types.Player{ID: "b", Name: "Ben"})
	require.NoError(t, err)
	require.NoError(t, st.MergeWrite(ctx, testCollection, b, store.Document{"status": "finished"}))

	rooms, err := m.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, a, rooms[0].ID)
}

func TestWatchOpen(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	sub, err := m.WatchOpen(ctx)
	require.NoError(t, err)
	defer sub.Close()

	id, err := m.Create(ctx, types.Player{ID: "a", Name: "Anna"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snaps := <-sub.C():
			rooms, err := DecodeRooms(snaps)
			require.NoError(t, err)
			if len(rooms) == 1 && rooms[0].ID == id {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for open room")
		}
	}
}
