package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLite(ctx, NewSQLiteOptions{
		Path:       filepath.Join(t.TempDir(), "partyhub.db"),
		Migrations: "../../migrations/sqlite",
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func TestSQLite_Transact(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	err := s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		snap, err := tx.Get("imposterRooms", "r1")
		if err != nil {
			return err
		}
		assert.False(t, snap.Exists)
		return tx.Set("imposterRooms", "r1", Document{"status": "waiting", "createdAt": 10})
	})
	require.NoError(t, err)

	err = s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update("imposterRooms", "r1", Document{"host": "a"})
	})
	require.NoError(t, err)

	snap, err := s.Get(ctx, "imposterRooms", "r1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", snap.Data["status"])
	assert.Equal(t, "a", snap.Data["host"])
}

func TestSQLite_MergeWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	require.NoError(t, s.MergeWrite(ctx, "quizRooms", "r1", Document{"status": "waiting", "createdAt": 2, "answers": map[string]int{"a": 1}}))
	require.NoError(t, s.MergeWrite(ctx, "quizRooms", "r1", Document{"answers": map[string]int{"b": 3}}))
	require.NoError(t, s.MergeWrite(ctx, "quizRooms", "r0", Document{"status": "waiting", "createdAt": 1}))

	snap, err := s.Get(ctx, "quizRooms", "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1), "b": float64(3)}, snap.Data["answers"])

	snaps, err := s.Query(ctx, "quizRooms", Filter{Field: "status", Value: "waiting"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r0", snaps[0].ID)
}

func TestSQLite_InsertDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	id, err := s.Insert(ctx, "bingoRooms", Document{"status": "waiting"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bingoRooms", id)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "bingoRooms", id))
	_, err = s.Get(ctx, "bingoRooms", id)
	assert.True(t, IsNotFound(err))
}
