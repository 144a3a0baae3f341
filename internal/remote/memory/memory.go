// Package memory is an in-process implementation of remote.Collection.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"expenses/internal/remote"
)

var _ remote.Collection = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
	docs  map[string]map[string]remote.Document
	order map[string][]string // insertion order per collection
}

func New() *Store {
	return &Store{
		now:   time.Now,
		newID: uuid.NewString,
		docs:  map[string]map[string]remote.Document{},
		order: map[string][]string{},
	}
}

// WithClock replaces the clock used to resolve server timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// NewFromFile seeds a store from a JSON file shaped as
// {"<collection>": [{"id": "...", "data": {...}}]}. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string][]remote.Snapshot
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for coll, snaps := range seed {
		for _, snap := range snaps {
			if snap.ID == "" {
				snap.ID = s.newID()
			}
			s.put(coll, snap.ID, snap.Data)
		}
	}
	return s, nil
}

func (s *Store) put(coll, id string, doc remote.Document) {
	c, ok := s.docs[coll]
	if !ok {
		c = map[string]remote.Document{}
		s.docs[coll] = c
	}
	if _, exists := c[id]; !exists {
		s.order[coll] = append(s.order[coll], id)
	}
	c[id] = doc.Clone()
}

func (s *Store) Insert(ctx context.Context, coll string, doc remote.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.put(coll, id, remote.ResolveServerTimestamps(doc, s.now()))
	return id, nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[coll][id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *Store) Update(ctx context.Context, coll, id string, patch remote.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[coll][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", coll, id, remote.ErrNotFound)
	}
	s.docs[coll][id] = doc.Merge(remote.ResolveServerTimestamps(patch, s.now()))
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[coll][id]; !ok {
		return nil
	}
	delete(s.docs[coll], id)
	ids := s.order[coll]
	for i, v := range ids {
		if v == id {
			s.order[coll] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, coll string, q remote.Query) ([]remote.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	all := make([]remote.Snapshot, 0, len(s.order[coll]))
	for _, id := range s.order[coll] {
		all = append(all, remote.Snapshot{ID: id, Data: s.docs[coll][id].Clone()})
	}
	s.mu.Unlock()
	return q.Apply(all), nil
}

// Len returns the number of documents in a collection.
func (s *Store) Len(coll string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[coll])
}
