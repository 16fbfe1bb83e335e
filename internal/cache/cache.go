package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"mila/internal/logging"
)

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe key/value store with per-entry TTLs. Expiry is
// checked on read; there is no background janitor, so memory is bounded by
// the working set of live keys plus whatever Sweep has not yet collected.
type Cache struct {
	logger *slog.Logger
	mu     sync.RWMutex
	items  map[string]item

	now func() time.Time // overridable in tests
}

// New creates a cache. A nil *Cache is valid: every operation becomes a
// no-op miss, which callers use to disable caching entirely.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		logger: logging.NewComponentLogger(logger, "cache"),
		items:  make(map[string]item),
		now:    time.Now,
	}
}

// Get returns the cached value when present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil || strings.TrimSpace(key) == "" {
		return nil, false
	}
	c.mu.RLock()
	entry, found := c.items[key]
	c.mu.RUnlock()
	if !found {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with an absolute TTL. A non-positive TTL means the
// value never expires (callers then rely on explicit invalidation).
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if c == nil || strings.TrimSpace(key) == "" {
		return
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored keys, expired or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep drops expired keys and returns how many were removed.
func (c *Cache) Sweep() int {
	if c == nil {
		return 0
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.items {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	if removed > 0 && c.logger != nil {
		c.logger.Debug("swept expired cache entries", logging.Int("removed", removed))
	}
	return removed
}
