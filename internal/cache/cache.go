// Package cache keeps validated price series in memory for a bounded TTL.
package cache

import (
	"sync"
	"time"

	"CryptoLens/internal/model"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Key identifies a cache entry.
type Key struct {
	Pair      model.AssetPair
	Timeframe model.Timeframe
}

func (k Key) String() string {
	return k.Pair.String() + "|" + string(k.Timeframe)
}

type entry struct {
	series  *model.PriceSeries
	expires time.Time
}

// Cache is a concurrency-safe TTL store. Entries are replaced whole, so a
// reader never observes a partially written series.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[Key]entry
}

// New creates a cache. A nil clock means the wall clock.
func New(ttl time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = SystemClock
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[Key]entry),
	}
}

// Get returns the unexpired series for key.
func (c *Cache) Get(key Key) (*model.PriceSeries, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expires) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && cur.expires == e.expires {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.series, true
}

// Set stores series under key for the configured TTL.
func (c *Cache) Set(key Key, series *model.PriceSeries) {
	c.mu.Lock()
	c.entries[key] = entry{series: series, expires: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes key, reporting whether it existed.
func (c *Cache) Delete(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Len counts stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
