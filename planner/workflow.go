// Copyright 2020, Square, Inc.

package planner

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/dag"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/proto"
)

// LoadWorkflow reads a workflow from a YAML file, or a JSON file if its name
// ends in .json.
func LoadWorkflow(file string) (proto.Workflow, error) {
	var wf proto.Workflow
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return wf, err
	}
	if strings.EqualFold(filepath.Ext(file), ".json") {
		err = json.Unmarshal(data, &wf)
	} else {
		err = yaml.Unmarshal(data, &wf)
	}
	if err != nil {
		return wf, fmt.Errorf("cannot decode workflow %s: %s", file, err)
	}
	return wf, nil
}

func invalid(format string, a ...interface{}) error {
	return serr.InvalidWorkflow{Message: fmt.Sprintf(format, a...)}
}

// validate checks everything that can be checked before planning: job names,
// sites, parents, cycles, and file uses. It returns the producer of every
// output file.
func validate(wf proto.Workflow, sites catalog.SiteStore) (map[string]string, error) {
	if len(wf.Jobs) == 0 {
		return nil, invalid("no jobs")
	}
	if wf.OutputSite != "" {
		if _, ok := sites.Lookup(wf.OutputSite); !ok {
			return nil, serr.SiteNotFound{Site: wf.OutputSite}
		}
	}

	g := dag.New(wf.Name)
	for _, wj := range wf.Jobs {
		if wj.Name == "" {
			return nil, invalid("job without a name")
		}
		if wj.Transformation == "" {
			return nil, invalid("job %s has no transformation", wj.Name)
		}
		if _, ok := sites.Lookup(wj.Site); !ok {
			return nil, serr.SiteNotFound{Site: wj.Site}
		}
		if err := g.AddJob(&job.Job{Name: wj.Name}); err != nil {
			return nil, invalid("duplicate job %s", wj.Name)
		}
	}
	for _, wj := range wf.Jobs {
		for _, p := range wj.Parents {
			if err := g.AddEdge(p, wj.Name); err != nil {
				return nil, invalid("job %s: %s", wj.Name, err)
			}
		}
	}
	if g.HasCycles() {
		return nil, invalid("jobs have a cycle")
	}

	producers := map[string]string{} // lfn => job
	for _, wj := range wf.Jobs {
		for _, u := range wj.Uses {
			if u.LFN == "" {
				return nil, invalid("job %s uses a file without an lfn", wj.Name)
			}
			switch u.Link {
			case proto.LINK_INPUT:
			case proto.LINK_OUTPUT:
				if prev, ok := producers[u.LFN]; ok {
					return nil, invalid("file %s is an output of jobs %s and %s", u.LFN, prev, wj.Name)
				}
				producers[u.LFN] = wj.Name
			default:
				return nil, invalid("job %s: file %s has link %q, expected %s or %s",
					wj.Name, u.LFN, u.Link, proto.LINK_INPUT, proto.LINK_OUTPUT)
			}
			for _, url := range append(append([]job.URL{}, u.Sources...), u.Destinations...) {
				if url.Site == "" || url.PFN == "" {
					return nil, invalid("job %s: file %s has a url without a site or pfn", wj.Name, u.LFN)
				}
				if _, err := url.Path(); err != nil {
					return nil, err
				}
			}
		}
	}

	// An input without sources must be the output of a parent.
	for _, wj := range wf.Jobs {
		for _, u := range wj.Uses {
			if u.Link != proto.LINK_INPUT || len(u.Sources) > 0 {
				continue
			}
			p, ok := producers[u.LFN]
			if !ok || !g.HasEdge(p, wj.Name) {
				return nil, invalid("job %s: input %s has no sources and is not an output of a parent", wj.Name, u.LFN)
			}
		}
	}
	return producers, nil
}

// computeJob returns the compute job of wj.
func computeJob(wj proto.WorkflowJob) (*job.Job, error) {
	j := &job.Job{
		Name:      wj.Name,
		ID:        wj.Name,
		Site:      wj.Site,
		Universe:  job.UNIVERSE_VANILLA,
		Arguments: wj.Args,
		Class:     job.EJobClass.Compute(),
	}
	j.SetTransformation(wj.Namespace, wj.Transformation, wj.Version)
	j.SetDerivation(wj.Namespace, wj.Transformation, wj.Version)

	// Sorted so the first bad namespace is always the one reported
	namespaces := make([]string, 0, len(wj.Profiles))
	for ns := range wj.Profiles {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, s := range namespaces {
		ns, err := job.ParseNamespace(s)
		if err != nil {
			return nil, invalid("job %s: profile namespace %q: %s", wj.Name, s, err)
		}
		for k, v := range wj.Profiles[s] {
			j.Profiles.Set(ns, k, v)
		}
	}
	return j, nil
}
