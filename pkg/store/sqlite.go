package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

type NewSQLiteOptions struct {
	// Path is the database file
	Path string
	// Migrations is a directory of .sql files executed in name order on open
	Migrations  string
	MaxAttempts int
}

// NewSQLite opens a Store backed by a SQLite file.
func NewSQLite(ctx context.Context, opts NewSQLiteOptions) (Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// writers are serialized by the single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := runMigrations(ctx, opts.Migrations, func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return newDocStore(&sqliteBackend{db: db}, opts.MaxAttempts), nil
}

func runMigrations(ctx context.Context, migrations string, exec func(ctx context.Context, stmt string) error) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}

	names := make([]string, 0, len(dir))
	for _, entry := range dir {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		migrationPath := filepath.Join(migrations, name)
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

type sqliteBackend struct {
	db *sql.DB
}

func (b *sqliteBackend) load(ctx context.Context, collection, id string) (record, error) {
	var raw string
	var version int64
	q := `SELECT data, version FROM documents WHERE collection = ? AND id = ?;`
	err := b.db.QueryRowContext(ctx, q, collection, id).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return record{}, nil
	}
	if err != nil {
		return record{}, fmt.Errorf("failed to query document: %v", err)
	}
	doc := Document{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return record{}, fmt.Errorf("failed to unmarshal document: %v", err)
	}
	return record{data: doc, version: version}, nil
}

func (b *sqliteBackend) query(ctx context.Context, collection string, filter Filter) ([]Snapshot, error) {
	q := `
	SELECT id, data FROM documents
	WHERE collection = ? AND json_extract(data, ?) = ?
	ORDER BY json_extract(data, '$.createdAt'), id;
	`
	rows, err := b.db.QueryContext(ctx, q, collection, "$."+filter.Field, filter.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %v", err)
		}
		doc := Document{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %v", err)
		}
		snaps = append(snaps, Snapshot{ID: id, Exists: true, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %v", err)
	}
	return snaps, nil
}

func (b *sqliteBackend) commit(ctx context.Context, reads map[docKey]int64, writes []mutation) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	written := make(map[docKey]bool, len(writes))
	for _, w := range writes {
		written[w.key] = true
	}
	for key, version := range reads {
		if written[key] {
			continue
		}
		var current int64
		q := `SELECT version FROM documents WHERE collection = ? AND id = ?;`
		err := tx.QueryRowContext(ctx, q, key.collection, key.id).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check version: %v", err)
		}
		if current != version {
			return errRetry
		}
	}

	for _, w := range writes {
		res, err := b.apply(ctx, tx, w)
		if err != nil {
			return err
		}
		if w.expected < 0 {
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %v", err)
		}
		if n == 0 {
			return errRetry
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

func (b *sqliteBackend) apply(ctx context.Context, tx *sql.Tx, w mutation) (sql.Result, error) {
	if w.data == nil {
		q := `DELETE FROM documents WHERE collection = ? AND id = ?;`
		res, err := tx.ExecContext(ctx, q, w.key.collection, w.key.id)
		if err != nil {
			return nil, fmt.Errorf("failed to delete document: %v", err)
		}
		return res, nil
	}

	raw, err := json.Marshal(w.data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %v", err)
	}

	var q string
	args := []interface{}{w.key.collection, w.key.id, string(raw)}
	switch {
	case w.expected == 0:
		q = `
		INSERT INTO documents (collection, id, data, version)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM documents))
		ON CONFLICT (collection, id) DO NOTHING;
		`
	case w.expected > 0:
		q = `
		UPDATE documents SET data = ?3, version = (SELECT MAX(version) + 1 FROM documents)
		WHERE collection = ?1 AND id = ?2 AND version = ?4;
		`
		args = append(args, w.expected)
	default:
		q = `
		INSERT INTO documents (collection, id, data, version)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM documents))
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, version = excluded.version;
		`
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to write document: %v", err)
	}
	return res, nil
}

func (b *sqliteBackend) close(ctx context.Context) error {
	return b.db.Close()
}
