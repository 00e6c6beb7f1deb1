// ABOUTME: Tests for the dedupe cache backing idempotent request replay.
// ABOUTME: Validates TTL expiration, size limits, eviction, cleanup, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock lets tests move time forward without sleeping.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache[string], *manualClock) {
	clock := &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string](ttl, maxSize)
	c.now = clock.Now
	return c, clock
}

func TestCache_Lookup_NotSeen(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	v, ok := cache.Lookup("never-seen-key")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestCache_RememberThenLookup(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("key-1", "one")
	cache.Remember("key-2", "two")

	v, ok := cache.Lookup("key-1")
	require.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok = cache.Lookup("key-2")
	require.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = cache.Lookup("key-3")
	assert.False(t, ok)
}

func TestCache_Lookup_Expired(t *testing.T) {
	cache, clock := newTestCache(10*time.Second, 100)
	defer cache.Close()

	cache.Remember("expiring-key", "v")

	_, ok := cache.Lookup("expiring-key")
	assert.True(t, ok)

	clock.Advance(10 * time.Second)

	_, ok = cache.Lookup("expiring-key")
	assert.False(t, ok, "entry should expire once the TTL has elapsed")
}

func TestCache_Remember_RefreshesTimestamp(t *testing.T) {
	cache, clock := newTestCache(50*time.Second, 100)
	defer cache.Close()

	cache.Remember("refresh-key", "old")
	clock.Advance(30 * time.Second)

	cache.Remember("refresh-key", "new")
	clock.Advance(30 * time.Second)

	// 60s after the first write but only 30s after the refresh
	v, ok := cache.Lookup("refresh-key")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestCache_EvictionOrder(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 3)
	defer cache.Close()

	cache.Remember("first", "1")
	cache.Remember("second", "2")
	cache.Remember("third", "3")
	assert.Equal(t, 3, cache.Len())

	cache.Remember("fourth", "4")

	_, ok := cache.Lookup("first")
	assert.False(t, ok, "first should be evicted")
	for _, key := range []string{"second", "third", "fourth"} {
		_, ok := cache.Lookup(key)
		assert.True(t, ok, key)
	}

	cache.Remember("fifth", "5")

	_, ok = cache.Lookup("second")
	assert.False(t, ok, "second should be evicted")
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Forget(t *testing.T) {
	cache, _ := newTestCache(5*time.Minute, 100)
	defer cache.Close()

	cache.Remember("k", "v")
	cache.Forget("k")
	cache.Forget("never-there")

	_, ok := cache.Lookup("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Cleanup(t *testing.T) {
	cache, clock := newTestCache(10*time.Second, 100)
	defer cache.Close()

	cache.Remember("cleanup-1", "a")
	cache.Remember("cleanup-2", "b")
	clock.Advance(5 * time.Second)
	cache.Remember("fresh", "c")
	clock.Advance(6 * time.Second)

	// The background loop runs every minute; drive it directly
	cache.runCleanup()

	assert.Equal(t, 1, cache.Len(), "cleanup should remove expired entries")
	_, ok := cache.Lookup("fresh")
	assert.True(t, ok)
}

func TestCache_LoadOrStore(t *testing.T) {
	cache, clock := newTestCache(10*time.Second, 100)
	defer cache.Close()

	v, loaded := cache.LoadOrStore("k", "first")
	assert.False(t, loaded)
	assert.Equal(t, "first", v)

	v, loaded = cache.LoadOrStore("k", "second")
	assert.True(t, loaded)
	assert.Equal(t, "first", v)

	clock.Advance(time.Minute)

	v, loaded = cache.LoadOrStore("k", "third")
	assert.False(t, loaded, "expired entries are replaced")
	assert.Equal(t, "third", v)
}

func TestCache_LoadOrStore_Atomic(t *testing.T) {
	cache := New[int](5*time.Minute, 100)
	defer cache.Close()

	const numGoroutines = 100

	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := range numGoroutines {
		go func() {
			defer wg.Done()
			if _, loaded := cache.LoadOrStore("contested-key", i); !loaded {
				winners.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(),
		"exactly one goroutine should store the contested key")
}

func TestCache_Concurrent(t *testing.T) {
	cache := New[string](5*time.Minute, 1000)
	defer cache.Close()

	const numGoroutines = 100
	const opsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d-%d", id%26, j%10)
				cache.Remember(key, key)
				cache.Lookup(key)
			}
		}(i)
	}

	wg.Wait()

	cache.Remember("final-key", "done")
	v, ok := cache.Lookup("final-key")
	assert.True(t, ok)
	assert.Equal(t, "done", v)
}

func TestCache_Close(t *testing.T) {
	cache := New[string](5*time.Minute, 100)

	cache.Remember("before-close", "x")

	// Close should not panic and should stop the cleanup goroutine
	cache.Close()

	// Multiple closes should not panic
	cache.Close()
}
