package state

import (
	"sync"

	"reserveScope/internal/model"
)

type entry struct {
	value   interface{}
	seq     uint64
	fetched bool
	stale   bool
}

// Cache holds derived contract state keyed by network, kind, and
// participants. A cache-wide sequence orders fetches against invalidations:
// every fetch reserves a sequence number before it starts, and an
// invalidation raises the key's watermark past all sequences reserved so
// far. A result arriving with a sequence below the watermark is discarded,
// so a slow response can neither overwrite fresher data nor clear a
// staleness mark recorded after it started.
type Cache struct {
	mu      sync.RWMutex
	entries map[model.StateKey]entry
	seq     uint64
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[model.StateKey]entry)}
}

// NextSeq reserves the sequence number for a fetch about to start.
func (c *Cache) NextSeq() uint64 {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	return seq
}

// Put stores a fetched value unless the key was invalidated after the fetch
// began. It reports whether the value was accepted.
func (c *Cache) Put(key model.StateKey, value interface{}, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if seq < e.seq {
		return false
	}
	c.entries[key] = entry{value: value, seq: seq, fetched: true}
	return true
}

// Get returns the cached value for a key. The boolean is false when the key
// was never successfully fetched.
func (c *Cache) Get(key model.StateKey) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.fetched {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether a key needs a refetch: it was never fetched, or an
// invalidation postdates its last accepted value.
func (c *Cache) IsStale(key model.StateKey) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return !ok || !e.fetched || e.stale
}

// Invalidate marks a key stale and raises its watermark so that fetches
// already in flight cannot satisfy it. The cached value stays readable until
// a refetch replaces it.
func (c *Cache) Invalidate(key model.StateKey) {
	c.mu.Lock()
	c.seq++
	e := c.entries[key]
	e.seq = c.seq
	e.stale = true
	c.entries[key] = e
	c.mu.Unlock()
}

// Drop removes a key outright.
func (c *Cache) Drop(key model.StateKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Keys returns every key currently tracked, fetched or not.
func (c *Cache) Keys() []model.StateKey {
	c.mu.RLock()
	keys := make([]model.StateKey, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.RUnlock()
	return keys
}
