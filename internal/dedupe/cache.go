// ABOUTME: Thread-safe TTL cache mapping idempotency keys to the result they produced.
// ABOUTME: Lets a retried send return the original message instead of creating another.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// State describes what Claim found for a key.
type State int

const (
	// Claimed means the key was unseen and is now reserved by the caller.
	Claimed State = iota
	// InFlight means another request holds the key and has not finished.
	InFlight
	// Completed means the key already produced a result.
	Completed
)

// cacheEntry stores the timestamp, result, and list element for a cached key.
type cacheEntry struct {
	timestamp time.Time
	value     string
	done      bool
	element   *list.Element
}

// Cache provides a thread-safe, TTL-based, size-limited map from
// idempotency keys to results.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a new replay cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *Cache) live(entry *cacheEntry) bool {
	return c.now().Sub(entry.timestamp) < c.ttl
}

// Lookup returns the result recorded for key, if any.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok || !entry.done || !c.live(entry) {
		return "", false
	}
	return entry.value, true
}

// Claim atomically inspects key and reserves it when unseen or expired.
// For Completed the recorded result is returned.
func (c *Cache) Claim(key string) (string, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok && c.live(entry) {
		if entry.done {
			return entry.value, Completed
		}
		return "", InFlight
	}

	c.putLocked(key, "", false)
	return "", Claimed
}

// Remember records the result for key, completing a claim.
func (c *Cache) Remember(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value, true)
}

// Release drops a claim so the key can be retried.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok && !entry.done {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// Len returns the number of keys held, including expired ones not yet cleaned.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// putLocked stores a key. Must be called with mu held.
func (c *Cache) putLocked(key, value string, done bool) {
	now := c.now()

	// If key already exists, update it and move to back
	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		entry.value = value
		entry.done = done
		c.order.MoveToBack(entry.element)
		return
	}

	// Evict oldest if at capacity
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{
		timestamp: now,
		value:     value,
		done:      done,
		element:   elem,
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.seen {
		if !c.live(entry) {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
