package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Key identifies one cached aggregation. Scope identity, range, and
// aggregation kind are all part of the key so two callers with different
// permissions can never share an entry, even over overlapping data.
type Key struct {
	Kind    string // aggregation kind: self, unit, all
	Subject string // participant id, or joined unit ids
	From    string // range start, YYYY-MM-DD
	To      string // range end, YYYY-MM-DD
}

// ReportKey builds a key from its parts. Unit sets are joined in the
// order supplied; callers sort them first for stable identity.
func ReportKey(kind string, subjects []string, from, to string) Key {
	return Key{Kind: kind, Subject: strings.Join(subjects, ","), From: from, To: to}
}

// DefaultTTL bounds how stale a served aggregation may be.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache for computed report values with per-unit
// invalidation. Keys are additionally indexed by the unit ids their
// scope covers; system-wide keys sit in a catch-all bucket that every
// unit invalidation clears.
type Cache[V any] struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[Key]entry[V]
	byUnit  map[string]map[Key]struct{}
	keyUnit map[Key][]string
	// versions detect an invalidation racing a compute in flight: a
	// write-back is dropped when any covered unit was invalidated after
	// the compute started. total orders catch-all scoped entries.
	versions map[string]uint64
	total    uint64
}

const allUnits = "*"

// New creates a cache using the given time source (nil means time.Now).
func New[V any](now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		now:      now,
		entries:  make(map[Key]entry[V]),
		byUnit:   make(map[string]map[Key]struct{}),
		keyUnit:  make(map[Key][]string),
		versions: make(map[string]uint64),
	}
}

// GetOrCompute returns the cached value for key when fresh, otherwise
// runs fn, stores the result, and returns it. units lists the unit ids
// the key's scope covers; empty means system-wide. Concurrent misses for
// the same key may compute redundantly, which is wasteful but safe.
// Compute errors are returned and never cached. The second return
// reports whether the value came from cache.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key Key, units []string, ttl time.Duration, fn func(context.Context) (V, error)) (V, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.RLock()
	ent, ok := c.entries[key]
	snap := c.snapshotLocked(units)
	c.mu.RUnlock()
	if ok && c.now().Before(ent.expiresAt) {
		return ent.value, true, nil
	}

	value, err := fn(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.mu.Lock()
	if c.snapshotLocked(units) == snap {
		c.storeLocked(key, units, value, ttl)
	}
	c.mu.Unlock()
	return value, false, nil
}

// snapshotLocked sums the invalidation versions a key's units depend on.
// Needs at least a read lock.
func (c *Cache[V]) snapshotLocked(units []string) uint64 {
	if len(units) == 0 {
		return c.total
	}
	var sum uint64
	for _, u := range units {
		sum += c.versions[u]
	}
	return sum
}

func (c *Cache[V]) storeLocked(key Key, units []string, value V, ttl time.Duration) {
	c.removeLocked(key)
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	buckets := units
	if len(buckets) == 0 {
		buckets = []string{allUnits}
	}
	c.keyUnit[key] = buckets
	for _, u := range buckets {
		if c.byUnit[u] == nil {
			c.byUnit[u] = make(map[Key]struct{})
		}
		c.byUnit[u][key] = struct{}{}
	}
}

// InvalidateUnit removes every entry whose scope intersects the unit,
// including system-wide entries. Entries are removed outright; a
// subsequent call recomputes, nothing is merged back.
func (c *Cache[V]) InvalidateUnit(unitID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[unitID]++
	c.total++
	for key := range c.byUnit[unitID] {
		c.removeLocked(key)
	}
	for key := range c.byUnit[allUnits] {
		c.removeLocked(key)
	}
}

// InvalidateAll drops everything.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	for u := range c.versions {
		c.versions[u]++
	}
	c.entries = make(map[Key]entry[V])
	c.byUnit = make(map[string]map[Key]struct{})
	c.keyUnit = make(map[Key][]string)
}

func (c *Cache[V]) removeLocked(key Key) {
	delete(c.entries, key)
	for _, u := range c.keyUnit[key] {
		delete(c.byUnit[u], key)
	}
	delete(c.keyUnit, key)
}

// Len reports the live entry count, expired entries included until their
// next touch.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
