package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"expenses/internal/remote"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })

	id, err := s.Insert(ctx, "expenses", remote.Document{"title": "Bus", "createdAt": remote.ServerTimestamp})
	if err != nil || id == "" {
		t.Fatalf("unexpected insert: id=%q err=%v", id, err)
	}
	doc, err := s.Get(ctx, "expenses", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got, ok := doc["createdAt"].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("server timestamp not resolved: %#v", doc["createdAt"])
	}

	if err := s.Update(ctx, "expenses", id, remote.Document{"title": "Train"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, _ = s.Get(ctx, "expenses", id)
	if doc["title"] != "Train" || doc["createdAt"] == nil {
		t.Fatalf("partial merge failed: %#v", doc)
	}

	if err := s.Update(ctx, "expenses", "missing", remote.Document{"title": "x"}); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(ctx, "expenses", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "expenses", id); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := s.Get(ctx, "expenses", id); !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.Insert(ctx, "expenses", remote.Document{"title": "Bus"})
	doc, _ := s.Get(ctx, "expenses", id)
	doc["title"] = "mutated"
	again, _ := s.Get(ctx, "expenses", id)
	if again["title"] != "Bus" {
		t.Fatalf("store leaked internal document")
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { tick = tick.Add(time.Hour); return tick })

	for _, d := range []remote.Document{
		{"userId": "u1", "category": "food"},
		{"userId": "u2", "category": "food"},
		{"userId": "u1", "category": "transport"},
	} {
		d["createdAt"] = remote.ServerTimestamp
		if _, err := s.Insert(ctx, "expenses", d); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.Query(ctx, "expenses", remote.Query{}.Where("userId", remote.OpEqual, "u1").Order("createdAt", true))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Data["category"] != "transport" || got[1].Data["category"] != "food" {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := s.Query(ctx, "expenses", remote.Query{}.Where("userId", "!=", "u1")); !errors.Is(err, remote.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil || s.Len("expenses") != 0 {
		t.Fatalf("expected empty store for missing file, err=%v", err)
	}

	path := filepath.Join(dir, "seed.json")
	seed := `{"expenses": [{"id": "a", "data": {"userId": "u1", "title": "Lunch", "amount": 500}}, {"data": {"userId": "u1"}}]}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if s.Len("expenses") != 2 {
		t.Fatalf("expected 2 seeded documents, got %d", s.Len("expenses"))
	}
	doc, err := s.Get(context.Background(), "expenses", "a")
	if err != nil || doc["title"] != "Lunch" {
		t.Fatalf("seeded document missing: %v %v", doc, err)
	}
}
