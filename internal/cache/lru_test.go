package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 7, 16, 10, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("aging", "a")
	c.Set("dashboard", "d")
	c.Get("aging")
	c.Set("statement:customer:1", "s")

	if _, ok := c.Get("dashboard"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if v, ok := c.Get("aging"); !ok || v != "a" {
		t.Errorf("Get(aging) = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("k1", "v1")
	c.Set("k2", "v2")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("k2", "v2b")
	clk.t = clk.t.Add(45 * time.Second)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0 (k1 already removed on Get)", n)
	}
	clk.t = clk.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}

	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("Stats() = %d/%d", hits, misses)
	}
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("c", "3")
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Error("cache unusable after Purge")
	}
}

func TestManagerStopIdempotent(t *testing.T) {
	m := NewManager()
	c := NewLRUCache[int](4, time.Millisecond)
	m.Register(c)
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	c.Set("x", 1)
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop()
	if c.Size() != 0 {
		t.Errorf("expired entry not swept, size %d", c.Size())
	}
}
