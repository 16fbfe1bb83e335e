package cache

import (
	"context"
	"time"

	"mila/internal/archive"
)

// CommunityReader is the subset of the archive store the memoized view
// needs.
type CommunityReader interface {
	GetCommunity(ctx context.Context, name string) (*archive.Community, error)
}

// Communities memoizes community profile reads. Profiles change rarely but
// are consulted on every submission and every rule check, so a short TTL
// keeps the store out of the hot path. A nil *Communities reads through to
// the store.
type Communities struct {
	store CommunityReader
	cache *Cache
	ttl   time.Duration
}

// NewCommunities wraps a reader with a memoizing layer. When cache is nil
// every call hits the store.
func NewCommunities(store CommunityReader, cache *Cache, ttl time.Duration) *Communities {
	return &Communities{store: store, cache: cache, ttl: ttl}
}

// Get returns the community profile by name, serving from cache when a
// fresh copy exists. A missing community returns (nil, nil) like the
// underlying store.
func (c *Communities) Get(ctx context.Context, name string) (*archive.Community, error) {
	if c == nil {
		return nil, nil
	}
	key := "community:" + name
	if cached, ok := c.cache.Get(key); ok {
		if community, ok := cached.(*archive.Community); ok {
			return community, nil
		}
	}
	community, err := c.store.GetCommunity(ctx, name)
	if err != nil {
		return nil, err
	}
	if community != nil {
		c.cache.Set(key, community, c.ttl)
	}
	return community, nil
}

// Invalidate evicts a community profile. All community writes must call
// this so readers never act on a stale profile for longer than one write.
func (c *Communities) Invalidate(name string) {
	if c == nil {
		return
	}
	c.cache.Delete("community:" + name)
}
