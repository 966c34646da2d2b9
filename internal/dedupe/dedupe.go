// Package dedupe guards against webhook redelivery. Chat platforms do
// not deliver updates exactly-once, so the gateway drops update IDs it
// has already processed within a TTL window.
package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	id int64
	at time.Time
}

// Cache is a TTL-based, size-bounded set of seen update IDs.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	seen    map[int64]time.Time
	queue   []entry // FIFO of insertions; stale entries skipped lazily
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum tracked IDs.
// A background goroutine sweeps expired entries once a minute.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[int64]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// CheckAndMark reports whether id was already seen within the TTL, and
// marks it as seen if not. The check and mark are a single atomic step
// so two concurrent deliveries of the same update cannot both pass.
func (c *Cache) CheckAndMark(id int64) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.seen[id]; ok && now.Sub(at) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest(now)
	}
	c.seen[id] = now
	c.queue = append(c.queue, entry{id: id, at: now})
	return false
}

// Len returns the number of tracked IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest drops queue entries until a live one is removed.
// Must be called with mu held.
func (c *Cache) evictOldest(now time.Time) {
	for len(c.queue) > 0 {
		head := c.queue[0]
		c.queue = c.queue[1:]
		at, ok := c.seen[head.id]
		if !ok || !at.Equal(head.at) {
			continue // re-marked or already swept
		}
		delete(c.seen, head.id)
		return
	}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, id)
		}
	}
	live := c.queue[:0]
	for _, e := range c.queue {
		if at, ok := c.seen[e.id]; ok && at.Equal(e.at) {
			live = append(live, e)
		}
	}
	c.queue = live
}

// Close stops the background sweeper. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
