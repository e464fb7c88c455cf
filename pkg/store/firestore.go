package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// nestedArrayKey wraps an array held directly inside another array, which Firestore rejects.
const nestedArrayKey = "_nested"

type NewFirestoreOptions struct {
	MaxAttempts int
}

// Firestore is a Store over a Cloud Firestore database.
type Firestore struct {
	client      *firestore.Client
	maxAttempts int
}

var _ Store = &Firestore{}

func NewFirestore(client *firestore.Client, opts NewFirestoreOptions) *Firestore {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Firestore{
		client:      client,
		maxAttempts: maxAttempts,
	}
}

func (s *Firestore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	ds, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if ds != nil && !ds.Exists() {
		return Snapshot{}, &ErrNotFound{Collection: collection, ID: id}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get %s/%s: %v", collection, id, err)
	}
	return fromFirestoreSnapshot(ds), nil
}

func (s *Firestore) Insert(ctx context.Context, collection string, data Document) (string, error) {
	doc, err := toFirestoreDocument(data)
	if err != nil {
		return "", err
	}
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %v", collection, err)
	}
	return ref.ID, nil
}

func (s *Firestore) MergeWrite(ctx context.Context, collection, id string, data Document) error {
	doc, err := toFirestoreDocument(data)
	if err != nil {
		return err
	}
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, doc, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to merge into %s/%s: %v", collection, id, err)
	}
	return nil
}

func (s *Firestore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %v", collection, id, err)
	}
	return nil
}

func (s *Firestore) Transact(ctx context.Context, fn TxFunc) error {
	var fnErr error
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		fnErr = fn(ctx, &firestoreTx{client: s.client, tx: t})
		return fnErr
	}, firestore.MaxAttempts(s.maxAttempts))
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func (s *Firestore) Query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error) {
	docs, err := s.client.Collection(collection).Where(filter.Field, "==", filter.Value).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %v", collection, err)
	}
	return fromFirestoreSnapshots(docs), nil
}

func (s *Firestore) Subscribe(ctx context.Context, collection, id string) (*Subscription[Snapshot], error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(collection).Doc(id).Snapshots(ctx)
	sub := newSubscription[Snapshot](func() {
		cancel()
		it.Stop()
	})

	go func() {
		for {
			ds, err := it.Next()
			if ds != nil && !ds.Exists() {
				sub.deliver(Snapshot{ID: id})
				continue
			}
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) {
					sub.Close()
					return
				}
				sub.fail(fmt.Errorf("failed to watch %s/%s: %v", collection, id, err))
				return
			}
			sub.deliver(fromFirestoreSnapshot(ds))
		}
	}()

	return sub, nil
}

func (s *Firestore) SubscribeQuery(ctx context.Context, collection string, filter Filter) (*Subscription[[]Snapshot], error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(collection).Where(filter.Field, "==", filter.Value).Snapshots(ctx)
	sub := newSubscription[[]Snapshot](func() {
		cancel()
		it.Stop()
	})

	go func() {
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) {
					sub.Close()
					return
				}
				sub.fail(fmt.Errorf("failed to watch query on %s: %v", collection, err))
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				sub.fail(fmt.Errorf("failed to read query snapshot on %s: %v", collection, err))
				return
			}
			sub.deliver(fromFirestoreSnapshots(docs))
		}
	}()

	return sub, nil
}

func (s *Firestore) Close(ctx context.Context) error {
	return s.client.Close()
}

type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) Get(collection, id string) (Snapshot, error) {
	ds, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if ds != nil && !ds.Exists() {
		return Snapshot{ID: id}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s/%s: %v", collection, id, err)
	}
	return fromFirestoreSnapshot(ds), nil
}

func (t *firestoreTx) Set(collection, id string, data Document) error {
	doc, err := toFirestoreDocument(data)
	if err != nil {
		return err
	}
	return t.tx.Set(t.client.Collection(collection).Doc(id), doc)
}

func (t *firestoreTx) Update(collection, id string, data Document) error {
	doc, err := toFirestoreDocument(data)
	if err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(doc))
	for k, v := range doc {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	return t.tx.Update(t.client.Collection(collection).Doc(id), updates)
}

func fromFirestoreSnapshot(ds *firestore.DocumentSnapshot) Snapshot {
	data, _ := fromFirestoreValue(ds.Data()).(map[string]interface{})
	return Snapshot{ID: ds.Ref.ID, Exists: true, Data: Document(data)}
}

func fromFirestoreSnapshots(docs []*firestore.DocumentSnapshot) []Snapshot {
	snaps := make([]Snapshot, 0, len(docs))
	for _, ds := range docs {
		snaps = append(snaps, fromFirestoreSnapshot(ds))
	}
	sortByCreation(snaps)
	return snaps
}

func toFirestoreDocument(data Document) (map[string]interface{}, error) {
	doc, err := normalize(data)
	if err != nil {
		return nil, err
	}
	out, _ := toFirestoreValue(map[string]interface{}(doc), false).(map[string]interface{})
	return out, nil
}

// toFirestoreValue stores integral numbers as integers and wraps nested arrays.
func toFirestoreValue(v interface{}, inArray bool) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = toFirestoreValue(item, false)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = toFirestoreValue(item, true)
		}
		if inArray {
			return map[string]interface{}{nestedArrayKey: out}
		}
		return out
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	default:
		return val
	}
}

func fromFirestoreValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if nested, ok := val[nestedArrayKey]; ok && len(val) == 1 {
			return fromFirestoreValue(nested)
		}
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = fromFirestoreValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = fromFirestoreValue(item)
		}
		return out
	default:
		return val
	}
}
