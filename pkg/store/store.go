package store

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts is the number of times a transaction function is run
// before a conflicting write is reported as ErrConflict.
const DefaultMaxAttempts = 5

// Document is a record in its persisted shape.
type Document map[string]interface{}

// Snapshot is the value of one document at a point in time.
type Snapshot struct {
	ID     string
	Exists bool
	Data   Document
}

// DataTo decodes the snapshot into v. If v has a SetID method it receives the document id.
func (s Snapshot) DataTo(v interface{}) error {
	if err := Decode(s.Data, v); err != nil {
		return err
	}
	if setter, ok := v.(interface{ SetID(string) }); ok {
		setter.SetID(s.ID)
	}
	return nil
}

// Filter selects documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value string
}

// Tx is the handle passed to a transaction function. Reads observe a consistent
// view; writes are applied atomically when the function returns nil.
type Tx interface {
	// Get reads a document. A missing document yields Exists == false and no error.
	Get(collection, id string) (Snapshot, error)
	// Set replaces the whole document.
	Set(collection, id string, data Document) error
	// Update replaces the given top-level fields of an existing document.
	Update(collection, id string, data Document) error
}

type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	Insert(ctx context.Context, collection string, data Document) (string, error)
	// MergeWrite merges data into the document, creating it if needed. Nested maps
	// are merged key by key, any other value is replaced.
	MergeWrite(ctx context.Context, collection, id string, data Document) error
	Delete(ctx context.Context, collection, id string) error
	// Transact runs fn until it commits without conflict, up to the store's attempt limit.
	// An error returned by fn aborts the transaction with no effect and is returned as is.
	Transact(ctx context.Context, fn TxFunc) error
	Query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error)
	// Subscribe delivers the current snapshot of a document immediately and then every change.
	Subscribe(ctx context.Context, collection, id string) (*Subscription[Snapshot], error)
	// SubscribeQuery is Subscribe for the result set of a query.
	SubscribeQuery(ctx context.Context, collection string, filter Filter) (*Subscription[[]Snapshot], error)
	Close(ctx context.Context) error
}

type ErrNotFound struct {
	Collection string
	ID         string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s/%s not found", e.Collection, e.ID)
}

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

// ErrConflict is returned when a transaction kept losing to concurrent writers.
var ErrConflict = errors.New("transaction conflict")

// errRetry signals a lost optimistic check inside a backend commit.
var errRetry = errors.New("version mismatch")
