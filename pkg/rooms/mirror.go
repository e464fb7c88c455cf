// Package rooms keeps a local copy of one room record in sync with the store.
package rooms

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/store"
)

// View is the decoded state of a room at one point in time.
type View[T any] struct {
	ID     string
	Exists bool
	Room   T
}

// Mirror holds the latest View of a room. Updates fires on every change, keeping
// only the newest view for a consumer that falls behind.
type Mirror[T any] struct {
	sub     *store.Subscription[store.Snapshot]
	lock    sync.RWMutex
	current View[T]
	ready   bool
	err     error
	updates chan View[T]
	done    chan struct{}
	once    sync.Once
}

// Watch subscribes to collection/id and starts mirroring it. Close the mirror to stop.
func Watch[T any](ctx context.Context, st store.Store, collection, id string) (*Mirror[T], error) {
	sub, err := st.Subscribe(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s/%s: %w", collection, id, err)
	}
	m := &Mirror[T]{
		sub:     sub,
		updates: make(chan View[T], 1),
		done:    make(chan struct{}),
	}
	go m.run()
	return m, nil
}

func (m *Mirror[T]) run() {
	defer m.finish()
	for snap := range m.sub.C() {
		view := View[T]{ID: snap.ID, Exists: snap.Exists}
		if snap.Exists {
			if err := snap.DataTo(&view.Room); err != nil {
				m.setErr(fmt.Errorf("failed to decode room %s: %w", snap.ID, err))
				m.sub.Close()
				return
			}
		}
		m.publish(view)
	}
	if err := m.sub.Err(); err != nil {
		m.setErr(err)
	}
}

func (m *Mirror[T]) publish(view View[T]) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.current = view
	m.ready = true
	select {
	case m.updates <- view:
	default:
		select {
		case <-m.updates:
		default:
		}
		m.updates <- view
	}
}

func (m *Mirror[T]) setErr(err error) {
	log.Error("Room subscription failed: %v", err)
	m.lock.Lock()
	m.err = err
	m.lock.Unlock()
}

func (m *Mirror[T]) finish() {
	m.lock.Lock()
	close(m.updates)
	m.lock.Unlock()
	close(m.done)
}

// Current returns the latest view. ok is false until the first snapshot arrives.
func (m *Mirror[T]) Current() (view View[T], ok bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current, m.ready
}

// Updates delivers each new view. It is closed when the mirror stops.
func (m *Mirror[T]) Updates() <-chan View[T] {
	return m.updates
}

// Done is closed once the mirror has stopped, after Close or a terminal error.
func (m *Mirror[T]) Done() <-chan struct{} {
	return m.done
}

// Err returns the terminal error, if the subscription failed.
func (m *Mirror[T]) Err() error {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.err
}

// Close stops mirroring. It is safe to call more than once.
func (m *Mirror[T]) Close() {
	m.once.Do(m.sub.Close)
}
