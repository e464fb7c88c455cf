package store

import (
	"context"
	"sync"

	"github.com/cbodonnell/partyhub/pkg/log"
)

type loadFunc func(ctx context.Context, collection, id string) (Snapshot, error)

type queryFunc func(ctx context.Context, collection string, filter Filter) ([]Snapshot, error)

// feed fans document changes out to subscriptions. Each watcher re-reads the
// current value on every change, one refresh at a time, so it never goes backwards.
type feed struct {
	lock    sync.Mutex
	docs    map[docKey]map[*docWatch]struct{}
	queries map[string]map[*queryWatch]struct{}
	load    loadFunc
	query   queryFunc
}

type docWatch struct {
	lock sync.Mutex
	ctx  context.Context
	key  docKey
	sub  *Subscription[Snapshot]
}

type queryWatch struct {
	lock       sync.Mutex
	ctx        context.Context
	collection string
	filter     Filter
	sub        *Subscription[[]Snapshot]
}

func newFeed(load loadFunc, query queryFunc) *feed {
	return &feed{
		docs:    map[docKey]map[*docWatch]struct{}{},
		queries: map[string]map[*queryWatch]struct{}{},
		load:    load,
		query:   query,
	}
}

func (f *feed) watchDocument(ctx context.Context, collection, id string) *Subscription[Snapshot] {
	ctx, cancel := context.WithCancel(ctx)
	w := &docWatch{ctx: ctx, key: docKey{collection: collection, id: id}}
	w.sub = newSubscription[Snapshot](func() {
		cancel()
		f.lock.Lock()
		delete(f.docs[w.key], w)
		if len(f.docs[w.key]) == 0 {
			delete(f.docs, w.key)
		}
		f.lock.Unlock()
	})

	f.lock.Lock()
	if f.docs[w.key] == nil {
		f.docs[w.key] = map[*docWatch]struct{}{}
	}
	f.docs[w.key][w] = struct{}{}
	f.lock.Unlock()

	go closeOnDone(ctx, w.sub.Done(), w.sub.Close)
	go f.refreshDocument(w)
	log.Trace("Watching %s/%s", collection, id)
	return w.sub
}

func (f *feed) watchQuery(ctx context.Context, collection string, filter Filter) *Subscription[[]Snapshot] {
	ctx, cancel := context.WithCancel(ctx)
	w := &queryWatch{ctx: ctx, collection: collection, filter: filter}
	w.sub = newSubscription[[]Snapshot](func() {
		cancel()
		f.lock.Lock()
		delete(f.queries[collection], w)
		if len(f.queries[collection]) == 0 {
			delete(f.queries, collection)
		}
		f.lock.Unlock()
	})

	f.lock.Lock()
	if f.queries[collection] == nil {
		f.queries[collection] = map[*queryWatch]struct{}{}
	}
	f.queries[collection][w] = struct{}{}
	f.lock.Unlock()

	go closeOnDone(ctx, w.sub.Done(), w.sub.Close)
	go f.refreshQuery(w)
	return w.sub
}

func closeOnDone(ctx context.Context, done <-chan struct{}, closeFn func()) {
	select {
	case <-ctx.Done():
		closeFn()
	case <-done:
	}
}

// publish notifies every watcher of the document and of queries over its collection.
func (f *feed) publish(collection, id string) {
	f.lock.Lock()
	docWatches := make([]*docWatch, 0, len(f.docs[docKey{collection, id}]))
	for w := range f.docs[docKey{collection, id}] {
		docWatches = append(docWatches, w)
	}
	queryWatches := make([]*queryWatch, 0, len(f.queries[collection]))
	for w := range f.queries[collection] {
		queryWatches = append(queryWatches, w)
	}
	f.lock.Unlock()

	for _, w := range docWatches {
		go f.refreshDocument(w)
	}
	for _, w := range queryWatches {
		go f.refreshQuery(w)
	}
}

func (f *feed) refreshDocument(w *docWatch) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	snap, err := f.load(w.ctx, w.key.collection, w.key.id)
	if err != nil {
		if w.ctx.Err() == nil {
			log.Error("Failed to refresh %s/%s: %v", w.key.collection, w.key.id, err)
			w.sub.fail(err)
		}
		return
	}
	w.sub.deliver(snap)
}

func (f *feed) refreshQuery(w *queryWatch) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	snaps, err := f.query(w.ctx, w.collection, w.filter)
	if err != nil {
		if w.ctx.Err() == nil {
			log.Error("Failed to refresh query on %s: %v", w.collection, err)
			w.sub.fail(err)
		}
		return
	}
	w.sub.deliver(snaps)
}

func (f *feed) closeAll() {
	f.lock.Lock()
	var subs []func()
	for _, watches := range f.docs {
		for w := range watches {
			subs = append(subs, w.sub.Close)
		}
	}
	for _, watches := range f.queries {
		for w := range watches {
			subs = append(subs, w.sub.Close)
		}
	}
	f.lock.Unlock()
	for _, closeFn := range subs {
		closeFn()
	}
}
