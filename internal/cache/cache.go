// Package cache provides the in-memory read cache of reassembled payloads.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the lifespan of an entry when none is configured.
const DefaultTTL = 60 * time.Second

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// A Cache holds payloads keyed by image id for a fixed time after insertion.
// Expiry is checked on access; expired entries are reclaimed by Sweep.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

// New returns a new Cache whose entries expire ttl after insertion.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		ttl:     ttl,
		entries: map[string]entry{},
	}
}

// Get returns the cached payload for the given id, or false on miss.
// Reading does not extend the entry's lifespan.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}

// Put stores the payload for the given id. An existing entry is replaced and
// its expiry restarts from now.
func (c *Cache) Put(id string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry{
		payload:   payload,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Sweep removes all the expired entries and returns how many were evicted.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
