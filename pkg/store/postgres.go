package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// documentsChannel carries "collection/id" of every committed write.
const documentsChannel = "partyhub_documents"

type NewPostgresOptions struct {
	ConnString string
	// Migrations is a directory of .sql files executed in name order on open
	Migrations  string
	MaxAttempts int
}

// NewPostgres opens a Store backed by Postgres. Changes are published with
// NOTIFY, so subscribers see writes made by any process sharing the database.
func NewPostgres(ctx context.Context, opts NewPostgresOptions) (Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username, database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	if opts.Migrations != "" {
		if err := runMigrations(ctx, opts.Migrations, func(ctx context.Context, stmt string) error {
			_, err := pool.Exec(ctx, stmt)
			return err
		}); err != nil {
			pool.Close()
			return nil, err
		}
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	b := &postgresBackend{pool: pool, cancel: cancel}
	s := newDocStore(b, opts.MaxAttempts)
	s.publishOnCommit = false
	go b.listen(listenCtx, s.feed)

	return s, nil
}

type postgresBackend struct {
	pool   *pgxpool.Pool
	cancel context.CancelFunc
}

func (b *postgresBackend) load(ctx context.Context, collection, id string) (record, error) {
	var raw []byte
	var version int64
	q := `SELECT data, version FROM documents WHERE collection = $1 AND id = $2`
	err := b.pool.QueryRow(ctx, q, collection, id).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return record{}, nil
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to query document: %v", err)
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return record{}, fmt.Errorf("failed to unmarshal document: %v", err)
	}
	return record{data: doc, version: version}, nil
}

func (b *postgresBackend) query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error) {
	q := `
	SELECT id, data FROM documents
	WHERE collection = $1 AND data ->> $2 = $3
	ORDER BY data -> 'createdAt', id
	`
	rows, err := b.pool.Query(ctx, q, collection, filter.Field, filter.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %v", err)
		}
		doc := Document{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %v", err)
		}
		snaps = append(snaps, Snapshot{ID: id, Exists: true, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %v", err)
	}
	return snaps, nil
}

func (b *postgresBackend) commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	written := make(map[docKey]bool, len(writes))
	for _, w := range writes {
		written[w.key] = true
	}
	for key, version := range reads {
		if written[key] {
			continue
		}
		var current int64
		q := `SELECT version FROM documents WHERE collection = $1 AND id = $2 FOR SHARE`
		err := tx.QueryRow(ctx, q, key.collection, key.id).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check version: %v", err)
		}
		if current != version {
			return errRetry
		}
	}

	for _, w := range writes {
		n, err := b.apply(ctx, tx, w)
		if err != nil {
			return err
		}
		if w.expected >= 0 && n == 0 {
			return errRetry
		}
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", documentsChannel, w.key.collection+"/"+w.key.id); err != nil {
			return fmt.Errorf("failed to notify: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (b *postgresBackend) apply(ctx context.Context, tx pgx.Tx, w mutation) (int64, error) {
	if w.data == nil {
		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, w.key.collection, w.key.id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete document: %v", err)
		}
		return tag.RowsAffected(), nil
	}

	raw, err := json.Marshal(w.data)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal document: %v", err)
	}

	var q string
	args := []interface{}{w.key.collection, w.key.id, string(raw)}
	switch {
	case w.expected == 0:
		q = `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING
		`
	case w.expected > 0:
		q = `
		UPDATE documents SET data = $3::jsonb, version = nextval('documents_version_seq'), updated_at = now()
		WHERE collection = $1 AND id = $2 AND version = $4
		`
		args = append(args, w.expected)
	default:
		q = `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = excluded.data, version = nextval('documents_version_seq'), updated_at = now()
		`
	}
	tag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to write document: %v", err)
	}
	return tag.RowsAffected(), nil
}

// listen forwards notifications to the feed until ctx is cancelled, reconnecting on failure.
func (b *postgresBackend) listen(ctx context.Context, f *feed) {
	for {
		err := b.listenOnce(ctx, f)
		if ctx.Err() != nil {
			return
		}
		log.Error("Document notification listener failed: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (b *postgresBackend) listenOnce(ctx context.Context, f *feed) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+documentsChannel); err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %v", err)
		}
		collection, id, ok := strings.Cut(n.Payload, "/")
		if !ok {
			log.Warn("Ignoring malformed document notification %q", n.Payload)
			continue
		}
		f.publish(collection, id)
	}
}

func (b *postgresBackend) close(ctx context.Context) error {
	b.cancel()
	b.pool.Close()
	return nil
}
