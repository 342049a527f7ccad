// Copyright 2020, Square, Inc.

package implementation

import (
	"strings"
	"unicode"
)

// DisabledSitePolicy decides per site whether staged executables get a real
// chmod job or a noop placeholder. It is immutable once built.
type DisabledSitePolicy struct {
	sites map[string]bool
	all   bool
}

// ParseDisabledSites parses a whitespace or comma separated list of site
// handles. A "*" entry disables chmod at all sites. An empty string disables
// none.
func ParseDisabledSites(s string) DisabledSitePolicy {
	p := DisabledSitePolicy{
		sites: map[string]bool{},
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	for _, site := range fields {
		p.sites[site] = true
	}
	p.all = p.sites["*"]
	return p
}

// Disabled returns true if chmod jobs are disabled at site.
func (p DisabledSitePolicy) Disabled(site string) bool {
	return p.all || p.sites[site]
}
