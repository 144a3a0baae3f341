// Package sheets stores documents in a Google Sheets spreadsheet: one tab per
// collection, the document id in column A and its JSON in column B.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"expenses/internal/cache"
	"expenses/internal/remote"
)

var _ remote.Collection = (*Store)(nil)

// values is the slice of the Sheets values API the store needs.
type values interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Append(ctx context.Context, rng string, rows [][]any) error
	Update(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

// Store keeps a short-lived cache of each tab's id column so Get, Update and
// Delete can address a row without reading the whole sheet.
type Store struct {
	api   values
	rows  *cache.LRUCache[[]string]
	mu    sync.Mutex // serializes writes; the Sheets API has no row locking
	now   func() time.Time
	newID func() string
}

func newStore(api values, rowCacheTTL time.Duration) *Store {
	return &Store{
		api:   api,
		rows:  cache.NewLRUCache[[]string](64, rowCacheTTL),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// RowCache exposes the id column cache so it can be registered with a cache.Manager.
func (s *Store) RowCache() cache.Cleaner {
	return s.rows
}

func (s *Store) ids(ctx context.Context, coll string) ([]string, error) {
	if ids, ok := s.rows.Get(coll); ok {
		return ids, nil
	}
	rows, err := s.api.Get(ctx, coll+"!A:A")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	s.rows.Set(coll, ids)
	return ids, nil
}

// rowOf returns the 1-based sheet row holding id, or 0.
func (s *Store) rowOf(ctx context.Context, coll, id string) (int, error) {
	ids, err := s.ids(ctx, coll)
	if err != nil {
		return 0, err
	}
	for i, v := range ids {
		if v == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *Store) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	data, err := remote.EncodeDocument(remote.ResolveServerTimestamps(doc, s.now()))
	if err != nil {
		return "", err
	}
	id := s.newID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.api.Append(ctx, coll+"!A:B", [][]any{{id, string(data)}}); err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}
	s.rows.Delete(coll)
	return id, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	row, err := s.rowOf(ctx, coll, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	if row == 0 {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	return s.readRow(ctx, coll, id, row)
}

func (s *Store) readRow(ctx context.Context, coll, id string, row int) (remote.Document, error) {
	rows, err := s.api.Get(ctx, fmt.Sprintf("%s!A%d:B%d", coll, row, row))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, err)
	}
	// The cached row index may be stale; verify the id before trusting the row.
	if len(rows) == 0 || len(rows[0]) < 2 || fmt.Sprint(rows[0][0]) != id {
		s.rows.Delete(coll)
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	return remote.DecodeDocument([]byte(fmt.Sprint(rows[0][1])))
}

func (s *Store) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowOf(ctx, coll, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	if row == 0 {
		return fmt.Errorf("update %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	current, err := s.readRow(ctx, coll, id, row)
	if err != nil {
		return err
	}
	data, err := remote.EncodeDocument(current.Merge(remote.ResolveServerTimestamps(patch, s.now())))
	if err != nil {
		return err
	}
	if err := s.api.Update(ctx, fmt.Sprintf("%s!B%d", coll, row), [][]any{{string(data)}}); err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, err)
	}
	return nil
}

// Delete clears the row rather than removing it, so the row numbers of other
// documents stay valid.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowOf(ctx, coll, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	if row == 0 {
		return nil
	}
	if err := s.api.Clear(ctx, fmt.Sprintf("%s!A%d:B%d", coll, row, row)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	s.rows.Delete(coll)
	return nil
}

func (s *Store) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.api.Get(ctx, coll+"!A:B")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}

	ids := make([]string, len(rows))
	snaps := make([]remote.Snapshot, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		ids[i] = id
		if id == "" || len(row) < 2 {
			continue
		}
		doc, err := remote.DecodeDocument([]byte(fmt.Sprint(row[1])))
		if err != nil {
			// A hand-edited cell should not hide the rest of the collection.
			continue
		}
		snaps = append(snaps, remote.Snapshot{ID: id, Data: doc})
	}
	s.rows.Set(coll, ids)
	return q.Apply(snaps), nil
}
