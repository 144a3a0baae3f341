// Package sqlite stores documents as JSON text in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"expenses/internal/remote"
)

var _ remote.Collection = (*Store)(nil)

type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open creates the database file if needed and runs the migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now, newID: uuid.NewString}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	data, err := remote.EncodeDocument(remote.ResolveServerTimestamps(doc, s.now()))
	if err != nil {
		return "", err
	}
	id := s.newID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?))`,
		coll, id, string(data), coll)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, coll, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	return remote.DecodeDocument([]byte(data))
}

// Update merges patch with json_patch, so the write is a single statement.
func (s *Store) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	data, err := remote.EncodeDocument(remote.ResolveServerTimestamps(patch, s.now()))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
		string(data), coll, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, coll, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return nil
}

// Query pushes string equality filters into SQL and evaluates the full query
// over the rows that come back.
func (s *Store) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	where, args := pushdown(q)
	stmt := `SELECT id, data FROM documents WHERE collection = ?` + where + ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, stmt, append([]any{coll}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var snaps []remote.Snapshot
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		doc, err := remote.DecodeDocument([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("query %s/%s: %w", coll, id, err)
		}
		snaps = append(snaps, remote.Snapshot{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	return q.Apply(snaps), nil
}

func pushdown(q remote.Query) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	for _, f := range q.Filters {
		v, ok := f.Value.(string)
		if f.Op != remote.OpEqual || !ok || strings.ContainsAny(f.Field, `"\`) {
			continue
		}
		b.WriteString(` AND json_extract(data, ?) = ?`)
		args = append(args, `$."`+f.Field+`"`, v)
	}
	return b.String(), args
}
