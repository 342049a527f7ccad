// Copyright 2020, Square, Inc.

package mock

import (
	"errors"

	"github.com/square/xferplan/catalog"
)

var (
	ErrCatalog = errors.New("forced error in catalog")
)

type TransformationCatalog struct {
	LookupFunc func(ns, name, version, site string, t catalog.EntryType) ([]*catalog.TransformationEntry, error)
	InsertFunc func(e *catalog.TransformationEntry, overwrite bool) error
	Inserted   []*catalog.TransformationEntry
}

func (c *TransformationCatalog) Lookup(ns, name, version, site string, t catalog.EntryType) ([]*catalog.TransformationEntry, error) {
	if c.LookupFunc != nil {
		return c.LookupFunc(ns, name, version, site, t)
	}
	return []*catalog.TransformationEntry{}, nil
}

func (c *TransformationCatalog) Insert(e *catalog.TransformationEntry, overwrite bool) error {
	c.Inserted = append(c.Inserted, e)
	if c.InsertFunc != nil {
		return c.InsertFunc(e, overwrite)
	}
	return nil
}

type SiteStore struct {
	LookupFunc              func(handle string) (*catalog.SiteEntry, bool)
	EnvironmentVariableFunc func(site, key string) string
	PegasusHomeFunc         func(site string) string
}

func (s *SiteStore) Lookup(handle string) (*catalog.SiteEntry, bool) {
	if s.LookupFunc != nil {
		return s.LookupFunc(handle)
	}
	return &catalog.SiteEntry{Handle: handle, SysInfo: catalog.DEFAULT_SYSINFO}, true
}

func (s *SiteStore) EnvironmentVariable(site, key string) string {
	if s.EnvironmentVariableFunc != nil {
		return s.EnvironmentVariableFunc(site, key)
	}
	return ""
}

func (s *SiteStore) PegasusHome(site string) string {
	if s.PegasusHomeFunc != nil {
		return s.PegasusHomeFunc(site)
	}
	return ""
}
