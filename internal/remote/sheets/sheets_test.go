package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"
	"time"

	"expenses/internal/remote"
)

// fakeValues is an in-memory spreadsheet with two columns per tab.
type fakeValues struct {
	tabs  map[string][][]any
	reads int
}

var rangeRe = regexp.MustCompile(`^([^!]+)!([AB])(\d*):?([AB]?)(\d*)$`)

func (f *fakeValues) parse(rng string) (tab string, from, to int) {
	m := rangeRe.FindStringSubmatch(rng)
	if m == nil {
		panic("bad range " + rng)
	}
	tab = m[1]
	from, to = 1, len(f.tabs[tab])
	if m[3] != "" {
		from, _ = strconv.Atoi(m[3])
		to = from
	}
	return tab, from, to
}

func (f *fakeValues) Get(_ context.Context, rng string) ([][]any, error) {
	f.reads++
	tab, from, to := f.parse(rng)
	var out [][]any
	for i := from; i <= to && i <= len(f.tabs[tab]); i++ {
		out = append(out, append([]any(nil), f.tabs[tab][i-1]...))
	}
	return out, nil
}

func (f *fakeValues) Append(_ context.Context, rng string, rows [][]any) error {
	tab, _, _ := f.parse(rng)
	f.tabs[tab] = append(f.tabs[tab], rows...)
	return nil
}

func (f *fakeValues) Update(_ context.Context, rng string, rows [][]any) error {
	tab, from, _ := f.parse(rng)
	if from > len(f.tabs[tab]) {
		return fmt.Errorf("row %d out of range", from)
	}
	f.tabs[tab][from-1] = []any{f.tabs[tab][from-1][0], rows[0][0]}
	return nil
}

func (f *fakeValues) Clear(_ context.Context, rng string) error {
	tab, from, _ := f.parse(rng)
	f.tabs[tab][from-1] = []any{}
	return nil
}

func newTestStore() (*Store, *fakeValues) {
	api := &fakeValues{tabs: map[string][][]any{}}
	s := newStore(api, time.Minute)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
	return s, api
}

func TestStoreCRUD(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	a, err := s.Insert(ctx, "expenses", remote.Document{"userId": "u1", "title": "Lunch", "createdAt": remote.ServerTimestamp})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	b, err := s.Insert(ctx, "expenses", remote.Document{"userId": "u2", "title": "Bus"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	doc, err := s.Get(ctx, "expenses", a)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc["createdAt"] != "2024-05-01T08:00:00Z" {
		t.Errorf("createdAt = %v", doc["createdAt"])
	}

	if err := s.Update(ctx, "expenses", b, remote.Document{"title": "Train"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	doc, _ = s.Get(ctx, "expenses", b)
	if doc["title"] != "Train" || doc["userId"] != "u2" {
		t.Errorf("merged document = %v", doc)
	}
	if err := s.Update(ctx, "expenses", "missing", remote.Document{"title": "x"}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want not found", err)
	}

	if err := s.Delete(ctx, "expenses", a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "expenses", a); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "expenses", a); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
	// b keeps its row after a is cleared.
	if _, err := s.Get(ctx, "expenses", b); err != nil {
		t.Errorf("Get(b) after deleting a error = %v", err)
	}
	if len(api.tabs["expenses"]) != 2 {
		t.Errorf("rows = %d, want 2", len(api.tabs["expenses"]))
	}
}

func TestStoreRowCache(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	id, _ := s.Insert(ctx, "expenses", remote.Document{"userId": "u1"})
	if _, err := s.Get(ctx, "expenses", id); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	reads := api.reads
	if _, err := s.Get(ctx, "expenses", id); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if api.reads != reads+1 {
		t.Errorf("cached Get made %d reads, want 1", api.reads-reads)
	}
}

func TestStoreQuery(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	api.tabs["expenses"] = [][]any{
		{"a", `{"userId":"u1","category":"food","createdAt":"2024-01-01T00:00:00Z"}`},
		{},
		{"b", `{"userId":"u1","category":"transport","createdAt":"2024-01-03T00:00:00Z"}`},
		{"c", `not json`},
		{"d", `{"userId":"u2","category":"food","createdAt":"2024-01-02T00:00:00Z"}`},
	}

	snaps, err := s.Query(ctx, "expenses", remote.Query{}.Where("userId", remote.OpEqual, "u1").Order("createdAt", true))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "b" || snaps[1].ID != "a" {
		t.Errorf("Query() = %v", snaps)
	}

	// The query primed the row cache; d sits on row 5.
	if row, _ := s.rowOf(ctx, "expenses", "d"); row != 5 {
		t.Errorf("rowOf(d) = %d, want 5", row)
	}
}
