// ABOUTME: Bounded, reference-counted pool of per-owner SQLite store handles.
// ABOUTME: Enforces capacity with LRU eviction and TTL-based background sweeping.

package connpool

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/store"
)

// entry tracks one owner's open store handle along with the bookkeeping
// needed for eviction decisions.
type entry struct {
	handle       *store.SQLiteStore
	lastAccessed time.Time
	refCount     int
}

// Pool owns the lifetime of per-owner storage handles. A handle is opened
// lazily on first Acquire and stays cached until the TTL sweeper or Clear
// closes it. An entry is never closed while its refCount is above zero.
//
// All map mutation happens under a single mutex so that two concurrent
// Acquire calls for the same new owner cannot both open a handle.
type Pool struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	dir      string
	logger   *slog.Logger

	sweepStop chan struct{}
}

// New creates a pool that stores each owner's database under dir with the
// given capacity. Capacity is a soft cap: when every entry is in use the
// pool grows past it rather than blocking or failing.
func New(dir string, capacity int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		entries:  make(map[string]*entry),
		capacity: capacity,
		dir:      dir,
		logger:   logger.With("component", "connpool"),
	}
}

// Acquire returns the cached store handle for ownerID, opening it if needed.
// Every successful Acquire must be paired with a Release.
func (p *Pool) Acquire(ownerID string) (*store.SQLiteStore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[ownerID]; ok {
		e.refCount++
		e.lastAccessed = time.Now()
		return e.handle, nil
	}

	if len(p.entries) >= p.capacity {
		p.evictOneLocked()
	}

	handle, err := store.Open(filepath.Join(p.dir, fmt.Sprintf("%s.db", ownerID)))
	if err != nil {
		// No partial entry: the map is untouched on open failure
		return nil, fmt.Errorf("opening store for owner %s: %w", ownerID, err)
	}

	p.entries[ownerID] = &entry{
		handle:       handle,
		lastAccessed: time.Now(),
		refCount:     1,
	}
	p.logger.Debug("opened store handle", "owner", ownerID, "pool_size", len(p.entries))
	return handle, nil
}

// Release decrements the owner's reference count, floored at zero.
// It never closes the handle; closing happens via the sweeper or Clear.
func (p *Pool) Release(ownerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[ownerID]
	if !ok {
		return
	}
	if e.refCount > 0 {
		e.refCount--
	}
}

// evictOneLocked closes and removes the least-recently-accessed entry with
// refCount == 0. If every entry is in use, nothing is evicted and the
// capacity is exceeded. Must be called with mu held.
func (p *Pool) evictOneLocked() {
	var victimID string
	var victim *entry

	for id, e := range p.entries {
		if e.refCount != 0 {
			continue
		}
		if victim == nil || e.lastAccessed.Before(victim.lastAccessed) {
			victimID = id
			victim = e
		}
	}

	if victim == nil {
		p.logger.Warn("pool at capacity with no evictable entry, exceeding soft cap",
			"capacity", p.capacity, "pool_size", len(p.entries))
		return
	}

	if err := victim.handle.Close(); err != nil {
		p.logger.Error("closing evicted store handle", "owner", victimID, "error", err)
	}
	delete(p.entries, victimID)
	p.logger.Debug("evicted store handle", "owner", victimID)
}

// StartSweeper launches the background TTL sweep. Every interval it closes
// and removes entries that are both unreferenced and idle for longer than
// ttl. Calling it again while a sweep is running has no effect.
func (p *Pool) StartSweeper(ttl, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sweepStop != nil {
		return
	}
	p.sweepStop = make(chan struct{})
	go p.sweep(ttl, interval, p.sweepStop)
}

// sweep runs in a background goroutine until the stop channel is closed.
func (p *Pool) sweep(ttl, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runSweep(ttl)
		case <-stop:
			return
		}
	}
}

// runSweep removes every expired, unreferenced entry. An entry whose
// lastAccessed is in the future never satisfies the inequality, so clock
// skew cannot cause eviction of a live handle.
func (p *Pool) runSweep(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for id, e := range p.entries {
		if e.refCount != 0 || now.Sub(e.lastAccessed) <= ttl {
			continue
		}
		if err := e.handle.Close(); err != nil {
			p.logger.Error("closing expired store handle", "owner", id, "error", err)
		}
		delete(p.entries, id)
		p.logger.Debug("swept idle store handle", "owner", id)
	}
}

// Clear closes every handle regardless of reference count, empties the pool,
// and stops the sweeper if running. Intended for process shutdown only;
// callers holding references are not notified.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.entries {
		if err := e.handle.Close(); err != nil {
			p.logger.Error("closing store handle on clear", "owner", id, "error", err)
		}
	}
	p.entries = make(map[string]*entry)

	if p.sweepStop != nil {
		close(p.sweepStop)
		p.sweepStop = nil
	}
	p.logger.Debug("pool cleared")
}

// Len returns the number of open handles in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
