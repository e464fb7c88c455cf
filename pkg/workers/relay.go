package workers

import (
	"context"

	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/rooms"
)

// SnapshotSink receives every view relayed from a mirror.
type SnapshotSink[T any] func(ctx context.Context, view rooms.View[T]) error

// SnapshotRelayWorker forwards the views of one room mirror to a sink until the
// context ends, the mirror stops or the sink fails.
type SnapshotRelayWorker[T any] struct {
	mirror *rooms.Mirror[T]
	sink   SnapshotSink[T]
}

type NewSnapshotRelayWorkerOptions[T any] struct {
	Mirror *rooms.Mirror[T]
	Sink   SnapshotSink[T]
}

func NewSnapshotRelayWorker[T any](opts NewSnapshotRelayWorkerOptions[T]) *SnapshotRelayWorker[T] {
	return &SnapshotRelayWorker[T]{
		mirror: opts.Mirror,
		sink:   opts.Sink,
	}
}

// Start blocks until relaying stops. It returns the mirror's terminal error or
// the sink's error; a cancelled context or a closed mirror returns nil.
func (w *SnapshotRelayWorker[T]) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case view, ok := <-w.mirror.Updates():
			if !ok {
				return w.mirror.Err()
			}
			log.Trace("Relaying snapshot of room %s", view.ID)
			if err := w.sink(ctx, view); err != nil {
				return err
			}
		}
	}
}
