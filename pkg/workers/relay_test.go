package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cbodonnell/partyhub/pkg/rooms"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRelayWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewMemory()

	mirror, err := rooms.Watch[store.Document](ctx, st, "rooms", "r1")
	require.NoError(t, err)
	defer mirror.Close()

	views := make(chan rooms.View[store.Document], 16)
	worker := NewSnapshotRelayWorker(NewSnapshotRelayWorkerOptions[store.Document]{
		Mirror: mirror,
		Sink: func(ctx context.Context, view rooms.View[store.Document]) error {
			views <- view
			return nil
		},
	})
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()

	require.NoError(t, st.MergeWrite(ctx, "rooms", "r1", store.Document{"status": "waiting"}))

	deadline := time.After(2 * time.Second)
	for found := false; !found; {
		select {
		case view := <-views:
			found = view.Exists && view.Room["status"] == "waiting"
		case <-deadline:
			t.Fatal("timed out waiting for relayed view")
		}
	}

	mirror.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSnapshotRelayWorker_SinkError(t *testing.T) {
	ctx := context.Background()
	mirror, err := rooms.Watch[store.Document](ctx, store.NewMemory(), "rooms", "r1")
	require.NoError(t, err)
	defer mirror.Close()

	boom := errors.New("write failed")
	worker := NewSnapshotRelayWorker(NewSnapshotRelayWorkerOptions[store.Document]{
		Mirror: mirror,
		Sink: func(ctx context.Context, view rooms.View[store.Document]) error {
			return boom
		},
	})
	assert.ErrorIs(t, worker.Start(ctx), boom)
}
