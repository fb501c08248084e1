package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New[string](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Set("a", "value-a")
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "value-a" {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[int](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.SetWithTTL("short", 42, 10*time.Millisecond)
	if _, ok := c.Get("short"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("expected miss after expiry")
	}

	metrics := c.Metrics()
	if metrics.Expirations != 1 {
		t.Errorf("expected 1 expiration, got %d", metrics.Expirations)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](Config{MaxEntries: 2, DefaultTTL: time.Minute})

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")

	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}

	if c.Metrics().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Metrics().Evictions)
	}
}

func TestSetUpdatesExisting(t *testing.T) {
	c := New[string](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.Set("a", "first")
	c.Set("a", "second")

	got, _ := c.Get("a")
	if got != "second" {
		t.Errorf("expected updated value, got %s", got)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}
}

func TestDelete(t *testing.T) {
	c := New[string](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.Set("a", "value")
	if !c.Delete("a") {
		t.Error("expected delete to report presence")
	}
	if c.Delete("a") {
		t.Error("expected second delete to report absence")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDeletePrefix(t *testing.T) {
	c := New[string](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.Set("deck:1", "a")
	c.Set("deck:2", "b")
	c.Set("thumb:1", "c")

	if n := c.DeletePrefix("deck:"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("thumb:1"); !ok {
		t.Error("expected thumb:1 to survive")
	}
}

func TestClearAndSize(t *testing.T) {
	c := New[int](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("expected size 0 after clear, got %d", c.Size())
	}
}

func TestCleanup(t *testing.T) {
	c := New[int](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.SetWithTTL("short1", 1, 5*time.Millisecond)
	c.SetWithTTL("short2", 2, 5*time.Millisecond)
	c.Set("long", 3)

	time.Sleep(10 * time.Millisecond)

	if n := c.Cleanup(); n != 2 {
		t.Errorf("expected 2 cleaned, got %d", n)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}
}

func TestMetrics(t *testing.T) {
	c := New[int](Config{MaxEntries: 10, DefaultTTL: time.Minute})

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	m := c.Metrics()
	if m.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", m.Misses)
	}

	want := float64(2) / float64(3) * 100
	if got := m.HitRate(); got < want-0.01 || got > want+0.01 {
		t.Errorf("expected hit rate %.2f, got %.2f", want, got)
	}
}

func TestHitRateEmpty(t *testing.T) {
	var m Metrics
	if m.HitRate() != 0 {
		t.Errorf("expected 0 hit rate with no traffic, got %f", m.HitRate())
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(10*time.Millisecond, nil)
	defer m.Stop()

	c := New[int](Config{MaxEntries: 10, DefaultTTL: time.Minute})
	m.Register("test", c)

	c.SetWithTTL("short", 1, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	if c.Size() != 0 {
		t.Errorf("expected expired entry to be swept, size %d", c.Size())
	}
}
