// Copyright 2020, Square, Inc.

package catalog

import (
	"sort"

	"github.com/orcaman/concurrent-map"
)

// MemoryCatalog is a TransformationCatalog held in memory.
type MemoryCatalog struct {
	entries cmap.ConcurrentMap // Key() => *TransformationEntry
}

func NewMemoryCatalog(entries ...*TransformationEntry) *MemoryCatalog {
	c := &MemoryCatalog{
		entries: cmap.New(),
	}
	for _, e := range entries {
		c.entries.Set(e.key(), e)
	}
	return c
}

func (c *MemoryCatalog) Lookup(ns, name, version, site string, t EntryType) ([]*TransformationEntry, error) {
	v, ok := c.entries.Get(Key(ns, name, version, site, t))
	if !ok {
		return []*TransformationEntry{}, nil
	}
	return []*TransformationEntry{v.(*TransformationEntry)}, nil
}

func (c *MemoryCatalog) Insert(e *TransformationEntry, overwrite bool) error {
	if overwrite {
		c.entries.Set(e.key(), e)
		return nil
	}
	if !c.entries.SetIfAbsent(e.key(), e) {
		return ErrEntryExists
	}
	return nil
}

// Entries returns all entries sorted by key.
func (c *MemoryCatalog) Entries() []*TransformationEntry {
	items := c.entries.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]*TransformationEntry, len(keys))
	for i, k := range keys {
		entries[i] = items[k].(*TransformationEntry)
	}
	return entries
}
