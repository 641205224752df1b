package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4") // evicts key1

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
}

func TestLRUCacheRecencyProtectsFromEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)

	c.Set("profile", "a")
	c.Set("settings", "b")
	c.Get("profile")
	c.Set("posts", "c")

	if _, found := c.Get("settings"); found {
		t.Error("settings should have been evicted as least recently used")
	}
	if v, found := c.Get("profile"); !found || v != "a" {
		t.Errorf("profile = %q, %v; want a, true", v, found)
	}
}

// TestLRUCacheTTLExpiration tests time-based expiration
func TestLRUCacheTTLExpiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](100, 5*time.Minute).WithClock(clock.now)

	c.Set("key1", "value1")
	if _, found := c.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}

	clock.advance(6 * time.Minute)

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after expired read, want 0", c.Size())
	}
}

// TestLRUCacheCleanExpired tests the cleanup mechanism
func TestLRUCacheCleanExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](100, time.Minute).WithClock(clock.now)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	clock.advance(2 * time.Minute)
	c.Set("key3", "value3")

	m := NewManager()
	m.Register(c)
	if removed := m.Sweep(); removed != 2 {
		t.Errorf("Expected 2 items cleaned, got %d", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[[]byte](10, time.Hour)
	c.Set("profile", []byte(`{}`))
	c.Set("settings", []byte(`{}`))

	c.Clear()

	if c.Size() != 0 {
		t.Errorf("Size() = %d after Clear, want 0", c.Size())
	}
	c.Set("profile", []byte(`{}`))
	if _, ok := c.Get("profile"); !ok {
		t.Error("cache unusable after Clear")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()

	m.StartCleanup(time.Millisecond)
	m.Stop()
}

// BenchmarkLRUCache benchmarks cache performance
func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[[]byte](1000, time.Hour)
	payload := []byte(`{"username":"ana","currency":"USD"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			c.Set("profile", payload)
		} else {
			c.Get("profile")
		}
	}
}
