// Package postgres stores documents in a JSONB column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"expenses/internal/remote"
)

var _ remote.Collection = (*Store)(nil)

type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open connects to databaseURL, verifies the connection and runs the migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, newID: uuid.NewString}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	data, err := remote.EncodeDocument(remote.ResolveServerTimestamps(doc, s.now()))
	if err != nil {
		return "", err
	}
	id := s.newID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		coll, id, string(data)); err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`, coll, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	return remote.DecodeDocument(data)
}

// Update concatenates patch onto the stored object; top-level keys of patch win.
func (s *Store) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	data, err := remote.EncodeDocument(remote.ResolveServerTimestamps(patch, s.now()))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
		coll, id, string(data))
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
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, coll, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	return nil
}

// Query narrows rows with a JSONB containment of the string equality filters,
// which the GIN index serves, then evaluates the full query in process.
func (s *Store) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	contains, err := containment(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY seq`,
		coll, contains)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var snaps []remote.Snapshot
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		doc, err := remote.DecodeDocument(data)
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

// containment builds the JSON object every matching row must contain.
func containment(q remote.Query) (string, error) {
	obj := map[string]string{}
	for _, f := range q.Filters {
		if v, ok := f.Value.(string); ok && f.Op == remote.OpEqual {
			obj[f.Field] = v
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encode containment: %w", err)
	}
	return string(b), nil
}
