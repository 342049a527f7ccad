// Copyright 2020, Square, Inc.

package catalog

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type siteFile struct {
	Sites []*SiteEntry `yaml:"sites"`
}

type transformationFile struct {
	Transformations []*TransformationEntry `yaml:"transformations"`
}

// LoadSites reads a site catalog YAML file.
func LoadSites(file string) (*Sites, error) {
	bytes, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading site catalog")
	}
	var sf siteFile
	if err := yaml.Unmarshal(bytes, &sf); err != nil {
		return nil, errors.Wrapf(err, "parsing site catalog %s", file)
	}
	seen := map[string]bool{}
	for i, s := range sf.Sites {
		if s.Handle == "" {
			return nil, fmt.Errorf("%s: site %d has no handle", file, i)
		}
		if seen[s.Handle] {
			return nil, fmt.Errorf("%s: site %s defined twice", file, s.Handle)
		}
		seen[s.Handle] = true
	}
	return NewSites(sf.Sites...), nil
}

// LoadTransformations reads a transformation catalog YAML file into a
// MemoryCatalog. Entries without a type are INSTALLED.
func LoadTransformations(file string) (*MemoryCatalog, error) {
	bytes, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading transformation catalog")
	}
	var tf transformationFile
	if err := yaml.Unmarshal(bytes, &tf); err != nil {
		return nil, errors.Wrapf(err, "parsing transformation catalog %s", file)
	}
	tc := NewMemoryCatalog()
	for i, e := range tf.Transformations {
		if e.Name == "" || e.Site == "" || e.PhysicalPath == "" {
			return nil, fmt.Errorf("%s: transformation %d: name, site, and pfn are required", file, i)
		}
		if e.Type == "" {
			e.Type = INSTALLED
		}
		if err := tc.Insert(e, false); err != nil {
			return nil, errors.Wrapf(err, "%s: %s at %s", file, e.CompleteName(), e.Site)
		}
	}
	return tc, nil
}
