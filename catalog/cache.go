// Copyright 2020, Square, Inc.

package catalog

import (
	"time"

	"github.com/bluele/gcache"
)

// CachedCatalog caches lookups of another TransformationCatalog in an LRU.
// Empty results are cached too. Insert goes through to the backend and
// invalidates the key, so an entry registered through the cache is returned
// by the next lookup.
type CachedCatalog struct {
	tc    TransformationCatalog
	cache gcache.Cache
}

// NewCachedCatalog wraps tc. A zero ttl caches entries until evicted.
func NewCachedCatalog(tc TransformationCatalog, size int, ttl time.Duration) *CachedCatalog {
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &CachedCatalog{
		tc:    tc,
		cache: b.Build(),
	}
}

func (c *CachedCatalog) Lookup(ns, name, version, site string, t EntryType) ([]*TransformationEntry, error) {
	key := Key(ns, name, version, site, t)
	if v, err := c.cache.Get(key); err == nil {
		return v.([]*TransformationEntry), nil
	}
	entries, err := c.tc.Lookup(ns, name, version, site, t)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, entries)
	return entries, nil
}

func (c *CachedCatalog) Insert(e *TransformationEntry, overwrite bool) error {
	err := c.tc.Insert(e, overwrite)
	c.cache.Remove(e.key())
	return err
}
