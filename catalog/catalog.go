// Copyright 2020, Square, Inc.

// Package catalog provides the transformation catalog (where an executable is
// installed at a site) and the site catalog (site profiles and environment).
// The planner only reads catalogs, except for registering default entries it
// synthesizes, which is a best-effort insert.
package catalog

import (
	"errors"
	"fmt"

	"github.com/square/xferplan/job"
)

var (
	// ErrEntryExists is returned by Insert without overwrite when the entry
	// is already in the catalog. Callers registering default entries
	// tolerate it.
	ErrEntryExists = errors.New("transformation catalog entry exists")
)

// EntryType is how a transformation is available at a site.
type EntryType string

const (
	INSTALLED EntryType = "INSTALLED"
	STAGEABLE EntryType = "STAGEABLE"
)

// DEFAULT_SYSINFO is used for sites that do not declare their architecture
// and os.
const DEFAULT_SYSINFO = "x86_64::LINUX"

// A TransformationEntry locates a transformation at one site.
type TransformationEntry struct {
	Namespace     string             `yaml:"namespace" json:"namespace"`
	Name          string             `yaml:"name" json:"name"`
	Version       string             `yaml:"version" json:"version,omitempty"`
	Site          string             `yaml:"site" json:"site"`
	PhysicalPath  string             `yaml:"pfn" json:"pfn"`
	Type          EntryType          `yaml:"type" json:"type"`
	SysInfo       string             `yaml:"sysinfo" json:"sysinfo,omitempty"`
	Profiles      job.Profiles       `yaml:"profiles" json:"profiles,omitempty"`
	Notifications []job.Notification `yaml:"notifications" json:"notifications,omitempty"`
}

// CompleteName returns ns::name:version.
func (e *TransformationEntry) CompleteName() string {
	return job.CompleteName(e.Namespace, e.Name, e.Version)
}

func (e *TransformationEntry) key() string {
	return Key(e.Namespace, e.Name, e.Version, e.Site, e.Type)
}

// Key returns the catalog key of a transformation at a site.
func Key(ns, name, version, site string, t EntryType) string {
	return fmt.Sprintf("%s@%s#%s", job.CompleteName(ns, name, version), site, t)
}

// A TransformationCatalog maps (namespace, name, version, site, type) to
// physical executables. Implementations must be safe for concurrent use.
type TransformationCatalog interface {
	// Lookup returns the entries for the transformation at site. No entry is
	// an empty list, not an error.
	Lookup(ns, name, version, site string, t EntryType) ([]*TransformationEntry, error)

	// Insert adds e. If overwrite is false and the entry exists, it returns
	// ErrEntryExists and the catalog is not changed.
	Insert(e *TransformationEntry, overwrite bool) error
}

// A SiteEntry describes one execution or storage site.
type SiteEntry struct {
	Handle        string       `yaml:"handle"`
	SysInfo       string       `yaml:"sysinfo"`
	SharedScratch string       `yaml:"shared_scratch"`
	Profiles      job.Profiles `yaml:"profiles"`
}

// A SiteStore is the site catalog.
type SiteStore interface {
	// Lookup returns the site with the given handle.
	Lookup(handle string) (*SiteEntry, bool)

	// EnvironmentVariable returns the env profile key of site, or "".
	EnvironmentVariable(site, key string) string

	// PegasusHome returns the planner tools installation root at site, or "".
	PegasusHome(site string) string
}
