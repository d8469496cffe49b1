// ABOUTME: Thread-safe TTL cache keyed by platform message ID
// ABOUTME: Suppresses redelivered inbound messages before they reach a queue

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores when a message ID was first seen and its position in the
// insertion-order list.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks recently seen message IDs so a redelivered message is
// answered at most once. Size-limited with oldest-first eviction; entries
// expire after the TTL regardless of capacity.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache. A background goroutine periodically drops
// expired entries; call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// CheckAndMark atomically checks whether id has been seen within the TTL
// and marks it if not. Returns true for a duplicate, false for a new id
// that is now marked. The single lock avoids a check-then-mark race.
func (c *Cache) CheckAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[id]
	if ok && time.Since(e.seenAt) < c.ttl {
		return true
	}

	c.markLocked(id)
	return false
}

// markLocked records id as seen. Must be called with mu held.
func (c *Cache) markLocked(id string) {
	now := time.Now()

	// Re-marking an expired id refreshes it in place.
	if e, exists := c.seen[id]; exists {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(id)
	c.seen[id] = &entry{
		seenAt:  now,
		element: elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

// Len reports the number of tracked ids, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// cleanup periodically removes expired entries so ids that never recur
// do not pin memory until eviction.
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

func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, id)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
