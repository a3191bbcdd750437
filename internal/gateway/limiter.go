// ABOUTME: Per-client token bucket pool used to rate limit the JSON API
// ABOUTME: Idle buckets are swept in the background so the pool stays bounded

package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one limiter per key. A key may make `requests`
// requests in a burst, refilled evenly over `window`.
type limiterPool struct {
	mu       sync.Mutex
	m        map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newLimiterPool(requests int, window time.Duration) *limiterPool {
	p := &limiterPool{
		m:      make(map[string]*limiterEntry),
		limit:  rate.Every(window / time.Duration(requests)),
		burst:  requests,
		ttl:    window,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go p.cleanupLoop(time.Minute)
	return p
}

// get returns the limiter for key, creating it if missing.
func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = p.now()
		return e.l
	}

	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: p.now()}
	return l
}

// Allow reports whether a request from key may proceed now.
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).AllowN(p.now(), 1)
}

// sweep removes limiters unused for longer than ttl. A bucket idle that
// long has refilled completely, so dropping it loses nothing.
func (p *limiterPool) sweep() {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

func (p *limiterPool) cleanupLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopCh:
			return
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call multiple times.
func (p *limiterPool) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
