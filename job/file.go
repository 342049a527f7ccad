// Copyright 2020, Square, Inc.

package job

import (
	"hash/fnv"
	"net/url"

	serr "github.com/square/xferplan/errors"
)

// A URL is one physical location of a file at a site.
type URL struct {
	Site string `json:"site" yaml:"site"`
	PFN  string `json:"url" yaml:"url"`

	// Priority is replica selection metadata. It is carried verbatim, never
	// interpreted.
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Path returns the path component of the URL.
func (u URL) Path() (string, error) {
	p, err := url.Parse(u.PFN)
	if err != nil {
		return "", serr.MalformedURL{URL: u.PFN, Err: err}
	}
	if p.Scheme == "" {
		return "", serr.MalformedURL{URL: u.PFN, Err: errNoScheme}
	}
	return p.Path, nil
}

// Scheme returns the URL scheme, or "" if the URL does not parse.
func (u URL) Scheme() string {
	p, err := url.Parse(u.PFN)
	if err != nil {
		return ""
	}
	return p.Scheme
}

// A FileTransfer is one logical file to move: an ordered list of candidate
// sources and one or more equivalent destinations.
type FileTransfer struct {
	LFN          string `json:"lfn" yaml:"lfn"`
	Sources      []URL  `json:"sources" yaml:"sources"`
	Destinations []URL  `json:"destinations" yaml:"destinations"`
	Executable   bool   `json:"executable,omitempty" yaml:"executable,omitempty"`
}

// Validate returns an error if the transfer has no LFN, source, or destination.
func (ft *FileTransfer) Validate() error {
	if ft == nil {
		return ErrNilFile
	}
	if ft.LFN == "" {
		return ErrNoLFN
	}
	if len(ft.Sources) == 0 {
		return ErrNoURL{LFN: ft.LFN, Direction: "source"}
	}
	if len(ft.Destinations) == 0 {
		return ErrNoURL{LFN: ft.LFN, Direction: "destination"}
	}
	return nil
}

// SourceSites returns the source sites in order of first appearance.
func (ft *FileTransfer) SourceSites() []string {
	sites := []string{}
	seen := map[string]bool{}
	for _, u := range ft.Sources {
		if seen[u.Site] {
			continue
		}
		seen[u.Site] = true
		sites = append(sites, u.Site)
	}
	return sites
}

// SourceURLs returns the source URLs at site, in order.
func (ft *FileTransfer) SourceURLs(site string) []URL {
	urls := []URL{}
	for _, u := range ft.Sources {
		if u.Site == site {
			urls = append(urls, u)
		}
	}
	return urls
}

// Source returns the first source URL.
func (ft *FileTransfer) Source() URL {
	if len(ft.Sources) == 0 {
		return URL{}
	}
	return ft.Sources[0]
}

// Dest returns the destination URL. With spread true and more than one
// destination, one is picked by a hash of the LFN so that many files fan out
// over the destinations while every run picks the same one for a given file.
func (ft *FileTransfer) Dest(spread bool) URL {
	switch len(ft.Destinations) {
	case 0:
		return URL{}
	case 1:
		return ft.Destinations[0]
	}
	if !spread {
		return ft.Destinations[0]
	}
	h := fnv.New32a()
	h.Write([]byte(ft.LFN))
	return ft.Destinations[h.Sum32()%uint32(len(ft.Destinations))]
}
