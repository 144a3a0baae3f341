package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // b is now least recently used
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s evicted", k)
		}
	}
}

func TestLRUCacheGetOrSet(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	calls := 0
	create := func() string { calls++; return "v" }

	c.GetOrSet("k", create)
	c.GetOrSet("k", create)
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	clk.t = clk.t.Add(time.Hour)
	c.GetOrSet("k", create)
	if calls != 2 {
		t.Errorf("create not called again after expiry")
	}
}

func TestManagerSweep(t *testing.T) {
	a, clk := newTestCache(10, time.Minute)
	b, _ := newTestCache(10, time.Minute)
	b.now = clk.now

	a.Set("x", "1")
	a.Set("y", "2")
	b.Set("z", "3")
	clk.t = clk.t.Add(2 * time.Minute)
	b.Set("fresh", "4")

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.Sweep(); n != 3 {
		t.Errorf("Sweep() = %d, want 3", n)
	}
	if b.Size() != 1 {
		t.Errorf("fresh entry removed")
	}

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
