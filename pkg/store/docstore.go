package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/google/uuid"
)

// record is a stored document with its version. Version 0 means absent.
type record struct {
	data    Document
	version int64
}

type docKey struct {
	collection string
	id         string
}

// mutation is one write of a commit. A nil data deletes the document.
// expected is the version the write was computed from, or -1 for a blind write.
type mutation struct {
	key      docKey
	data     Document
	expected int64
}

// backend is the storage primitive under docStore. commit must apply all writes
// atomically and return errRetry if any read or expected version no longer holds.
type backend interface {
	load(ctx context.Context, collection, id string) (record, error)
	query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error)
	commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error
	close(ctx context.Context) error
}

// docStore implements Store on top of a versioned backend with optimistic transactions.
type docStore struct {
	backend     backend
	feed        *feed
	maxAttempts int
	// publishOnCommit is false when the backend reports its own changes to the feed.
	publishOnCommit bool
}

func newDocStore(b backend, maxAttempts int) *docStore {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	s := &docStore{
		backend:         b,
		maxAttempts:     maxAttempts,
		publishOnCommit: true,
	}
	s.feed = newFeed(s.loadSnapshot, b.query)
	return s
}

func (s *docStore) loadSnapshot(ctx context.Context, collection, id string) (Snapshot, error) {
	rec, err := s.backend.load(ctx, collection, id)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, Exists: rec.version > 0, Data: rec.data}, nil
}

func (s *docStore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	snap, err := s.loadSnapshot(ctx, collection, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if !snap.Exists {
		return Snapshot{}, &ErrNotFound{Collection: collection, ID: id}
	}
	return snap, nil
}

func (s *docStore) Insert(ctx context.Context, collection string, data Document) (string, error) {
	doc, err := normalize(data)
	if err != nil {
		return "", err
	}
	key := docKey{collection: collection, id: uuid.NewString()}
	writes := []mutation{{key: key, data: doc, expected: 0}}
	if err := s.backend.commit(ctx, nil, writes); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	s.published(writes)
	return key.id, nil
}

func (s *docStore) MergeWrite(ctx context.Context, collection, id string, data Document) error {
	patch, err := normalize(data)
	if err != nil {
		return err
	}
	return s.Transact(ctx, func(ctx context.Context, tx Tx) error {
		snap, err := tx.Get(collection, id)
		if err != nil {
			return err
		}
		return tx.Set(collection, id, mergeDocuments(snap.Data, patch))
	})
}

func (s *docStore) Delete(ctx context.Context, collection, id string) error {
	writes := []mutation{{key: docKey{collection: collection, id: id}, expected: -1}}
	if err := s.backend.commit(ctx, nil, writes); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	s.published(writes)
	return nil
}

func (s *docStore) Transact(ctx context.Context, fn TxFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		tx := &docTx{
			ctx:     ctx,
			backend: s.backend,
			reads:   map[docKey]record{},
			pending: map[docKey]int{},
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if len(tx.writes) == 0 {
			return nil
		}
		versions := make(map[docKey]int64, len(tx.reads))
		for k, rec := range tx.reads {
			versions[k] = rec.version
		}
		err := s.backend.commit(ctx, versions, tx.writes)
		if errors.Is(err, errRetry) {
			log.Trace("Transaction attempt %d lost a version check, retrying", attempt)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.published(tx.writes)
		return nil
	}
	return ErrConflict
}

func (s *docStore) Query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error) {
	snaps, err := s.backend.query(ctx, collection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return snaps, nil
}

func (s *docStore) Subscribe(ctx context.Context, collection, id string) (*Subscription[Snapshot], error) {
	return s.feed.watchDocument(ctx, collection, id), nil
}

func (s *docStore) SubscribeQuery(ctx context.Context, collection string, filter Filter) (*Subscription[[]Snapshot], error) {
	return s.feed.watchQuery(ctx, collection, filter), nil
}

func (s *docStore) Close(ctx context.Context) error {
	s.feed.closeAll()
	return s.backend.close(ctx)
}

func (s *docStore) published(writes []mutation) {
	if !s.publishOnCommit {
		return
	}
	for _, w := range writes {
		s.feed.publish(w.key.collection, w.key.id)
	}
}

// docTx buffers writes and remembers the version of every document it computed them from.
type docTx struct {
	ctx     context.Context
	backend backend
	reads   map[docKey]record
	writes  []mutation
	pending map[docKey]int
}

func (t *docTx) current(key docKey) (record, error) {
	if i, ok := t.pending[key]; ok {
		w := t.writes[i]
		if w.data == nil {
			return record{}, nil
		}
		return record{data: w.data, version: 1}, nil
	}
	if rec, ok := t.reads[key]; ok {
		return rec, nil
	}
	rec, err := t.backend.load(t.ctx, key.collection, key.id)
	if err != nil {
		return record{}, fmt.Errorf("failed to read %s/%s: %w", key.collection, key.id, err)
	}
	t.reads[key] = rec
	return rec, nil
}

func (t *docTx) Get(collection, id string) (Snapshot, error) {
	rec, err := t.current(docKey{collection: collection, id: id})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, Exists: rec.version > 0, Data: rec.data}, nil
}

func (t *docTx) Set(collection, id string, data Document) error {
	doc, err := normalize(data)
	if err != nil {
		return err
	}
	t.write(docKey{collection: collection, id: id}, doc)
	return nil
}

func (t *docTx) Update(collection, id string, data Document) error {
	key := docKey{collection: collection, id: id}
	rec, err := t.current(key)
	if err != nil {
		return err
	}
	if rec.version == 0 {
		return &ErrNotFound{Collection: collection, ID: id}
	}
	patch, err := normalize(data)
	if err != nil {
		return err
	}
	doc := make(Document, len(rec.data)+len(patch))
	for k, v := range rec.data {
		doc[k] = v
	}
	for k, v := range patch {
		doc[k] = v
	}
	t.write(key, doc)
	return nil
}

func (t *docTx) write(key docKey, doc Document) {
	expected := int64(-1)
	if rec, ok := t.reads[key]; ok {
		expected = rec.version
	}
	m := mutation{key: key, data: doc, expected: expected}
	if i, ok := t.pending[key]; ok {
		t.writes[i] = m
		return
	}
	t.pending[key] = len(t.writes)
	t.writes = append(t.writes, m)
}
