package store

import (
	"context"
	"sync"
)

// NewMemory returns a Store held in process memory.
func NewMemory() Store {
	return newDocStore(newMemoryBackend(), DefaultMaxAttempts)
}

type memoryBackend struct {
	lock        sync.RWMutex
	collections map[string]map[string]record
	// sequence makes versions unique across delete and re-create
	sequence int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		collections: map[string]map[string]record{},
	}
}

func (b *memoryBackend) load(ctx context.Context, collection, id string) (record, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	rec, ok := b.collections[collection][id]
	if !ok {
		return record{}, nil
	}
	data, err := normalize(rec.data)
	if err != nil {
		return record{}, err
	}
	return record{data: data, version: rec.version}, nil
}

func (b *memoryBackend) query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	snaps := []Snapshot{}
	for id, rec := range b.collections[collection] {
		if !matches(rec.data, filter) {
			continue
		}
		data, err := normalize(rec.data)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, Snapshot{ID: id, Exists: true, Data: data})
	}
	sortByCreation(snaps)
	return snaps, nil
}

func (b *memoryBackend) versionOf(key docKey) int64 {
	return b.collections[key.collection][key.id].version
}

func (b *memoryBackend) commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for key, version := range reads {
		if b.versionOf(key) != version {
			return errRetry
		}
	}
	for _, w := range writes {
		if w.expected >= 0 && b.versionOf(w.key) != w.expected {
			return errRetry
		}
	}

	for _, w := range writes {
		if w.data == nil {
			delete(b.collections[w.key.collection], w.key.id)
			continue
		}
		if b.collections[w.key.collection] == nil {
			b.collections[w.key.collection] = map[string]record{}
		}
		b.sequence++
		b.collections[w.key.collection][w.key.id] = record{data: w.data, version: b.sequence}
	}
	return nil
}

func (b *memoryBackend) close(ctx context.Context) error {
	return nil
}
