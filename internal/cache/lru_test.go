package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCache_GetSetEvict(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	// a was touched, so b is the least recently used.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Fatalf("overwrite: got %d", v)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a deleted")
	}

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.now)

	c.Set("x", "1")
	c.Set("y", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("z", "3")

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Fatalf("x should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1 (y)", n)
	}
	if v, ok := c.Get("z"); !ok || v != "3" {
		t.Fatalf("z should survive, got %q %v", v, ok)
	}
}

func TestManager_CleanAllAndStop(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c1 := NewLRUCache[int](10, time.Second).WithClock(clk.now)
	c2 := NewLRUCache[int](10, time.Hour).WithClock(clk.now)
	c1.Set("a", 1)
	c2.Set("b", 2)

	m := NewManager(nil)
	m.Register(c1)
	m.Register(c2)

	clk.t = clk.t.Add(2 * time.Second)
	if n := m.CleanAll(); n != 1 {
		t.Fatalf("CleanAll = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()

	// Stop without Start must not block.
	NewManager(nil).Stop()
}
