// Copyright 2020, Square, Inc.

package catalog

import (
	"sort"

	"github.com/square/xferplan/job"
)

// Sites is a read-only, in-memory SiteStore.
type Sites struct {
	sites map[string]*SiteEntry
}

// NewSites returns a site store of the given sites. The submit host site
// "local" is always present: if entries do not define it, a default entry
// is added.
func NewSites(entries ...*SiteEntry) *Sites {
	s := &Sites{
		sites: map[string]*SiteEntry{},
	}
	for _, e := range entries {
		if e.SysInfo == "" {
			e.SysInfo = DEFAULT_SYSINFO
		}
		s.sites[e.Handle] = e
	}
	if _, ok := s.sites[job.SITE_LOCAL]; !ok {
		s.sites[job.SITE_LOCAL] = &SiteEntry{
			Handle:  job.SITE_LOCAL,
			SysInfo: DEFAULT_SYSINFO,
		}
	}
	return s
}

func (s *Sites) Lookup(handle string) (*SiteEntry, bool) {
	e, ok := s.sites[handle]
	return e, ok
}

func (s *Sites) EnvironmentVariable(site, key string) string {
	e, ok := s.sites[site]
	if !ok {
		return ""
	}
	v, _ := e.Profiles.Get(job.ENV, key)
	return v
}

func (s *Sites) PegasusHome(site string) string {
	return s.EnvironmentVariable(site, job.ENV_PEGASUS_HOME)
}

// Handles returns the sorted site handles.
func (s *Sites) Handles() []string {
	handles := make([]string, 0, len(s.sites))
	for h := range s.sites {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}
