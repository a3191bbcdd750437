// ABOUTME: Tests for the idempotency replay cache.
// ABOUTME: Validates claims, replay, release, TTL expiration, eviction, cleanup, and concurrency.

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.now = clock.Now
	return c, clock
}

func TestCache_Lookup_NotSeen(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, ok := cache.Lookup("never-seen-key")
	assert.False(t, ok)
}

func TestCache_ClaimThenRemember(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, state := cache.Claim("send-1")
	assert.Equal(t, Claimed, state)

	// A pending claim has no result yet.
	_, ok := cache.Lookup("send-1")
	assert.False(t, ok)

	_, state = cache.Claim("send-1")
	assert.Equal(t, InFlight, state)

	cache.Remember("send-1", "msg-42")

	value, state := cache.Claim("send-1")
	assert.Equal(t, Completed, state)
	assert.Equal(t, "msg-42", value)

	value, ok = cache.Lookup("send-1")
	assert.True(t, ok)
	assert.Equal(t, "msg-42", value)
}

func TestCache_Release(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	_, state := cache.Claim("send-1")
	assert.Equal(t, Claimed, state)

	cache.Release("send-1")

	_, state = cache.Claim("send-1")
	assert.Equal(t, Claimed, state, "released key can be claimed again")

	// Release does not drop a completed result.
	cache.Remember("send-1", "msg-1")
	cache.Release("send-1")
	_, ok := cache.Lookup("send-1")
	assert.True(t, ok)
}

func TestCache_Expired(t *testing.T) {
	cache, clock := newTestCache(time.Minute, 100)
	defer cache.Close()

	cache.Remember("expiring-key", "msg-1")
	_, ok := cache.Lookup("expiring-key")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)

	_, ok = cache.Lookup("expiring-key")
	assert.False(t, ok)

	_, state := cache.Claim("expiring-key")
	assert.Equal(t, Claimed, state, "expired key can be claimed again")
}

func TestCache_Remember_RefreshesTimestamp(t *testing.T) {
	cache, clock := newTestCache(time.Minute, 100)
	defer cache.Close()

	cache.Remember("refresh-key", "a")
	clock.Advance(40 * time.Second)
	cache.Remember("refresh-key", "b")
	clock.Advance(40 * time.Second)

	value, ok := cache.Lookup("refresh-key")
	assert.True(t, ok)
	assert.Equal(t, "b", value)
}

func TestCache_EvictionOrder(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.Remember("first", "1")
	cache.Remember("second", "2")
	cache.Remember("third", "3")

	// Add fourth - should evict "first" (oldest)
	cache.Remember("fourth", "4")

	_, ok := cache.Lookup("first")
	assert.False(t, ok, "first should be evicted")
	for _, key := range []string{"second", "third", "fourth"} {
		_, ok := cache.Lookup(key)
		assert.True(t, ok, key)
	}

	// Add fifth - should evict "second"
	cache.Remember("fifth", "5")
	_, ok = cache.Lookup("second")
	assert.False(t, ok, "second should be evicted")
	assert.Equal(t, 3, cache.Len())
}

func TestCache_Cleanup(t *testing.T) {
	cache, clock := newTestCache(time.Minute, 100)
	defer cache.Close()

	cache.Remember("cleanup-1", "a")
	cache.Remember("cleanup-2", "b")
	_, _ = cache.Claim("cleanup-3")

	clock.Advance(2 * time.Minute)
	cache.Remember("fresh", "c")

	cache.runCleanup()
	assert.Equal(t, 1, cache.Len(), "cleanup should remove expired entries")
}

func TestCache_Claim_Atomic(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	const numGoroutines = 100

	var winners int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if _, state := cache.Claim("contested-key"); state == Claimed {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), winners, "exactly one goroutine should win the claim")
}

func TestCache_Close(t *testing.T) {
	cache := New(5*time.Minute, 100)

	cache.Remember("before-close", "x")

	// Close should not panic and should stop the cleanup goroutine
	cache.Close()

	// Multiple closes should not panic
	cache.Close()
}
