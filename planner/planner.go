// Copyright 2020, Square, Inc.

// Package planner plans abstract workflows: it maps every compute job to its
// site and adds the transfer jobs that move the job's files, producing a
// workflow that a scheduler can run.
package planner

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
	"github.com/square/xferplan/dag"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/proto"
	"github.com/square/xferplan/transfer/implementation"
	"github.com/square/xferplan/transfer/refiner"
	"github.com/square/xferplan/util"
)

// A Planner plans workflows against one set of catalogs and one config. It
// is safe for concurrent use: every Plan call is a separate planning run.
type Planner struct {
	cfg    config.Planner
	props  config.Properties
	policy implementation.DisabledSitePolicy
	sites  catalog.SiteStore
	tc     catalog.TransformationCatalog
}

func NewPlanner(cfg config.Planner, sites catalog.SiteStore, tc catalog.TransformationCatalog) *Planner {
	props := config.NewProperties(cfg)
	return &Planner{
		cfg:    cfg,
		props:  props,
		policy: implementation.ParseDisabledSites(props.ChmodDisabledSites()),
		sites:  sites,
		tc:     tc,
	}
}

// Properties returns the transfer properties runs are planned with.
func (p *Planner) Properties() config.Properties {
	return p.props
}

// Plan plans wf. Manifests are written to a new directory under the submit
// dir named by the run id. Any error aborts the run; no partial plan is
// returned.
func (p *Planner) Plan(wf proto.Workflow) (*Plan, error) {
	producers, err := validate(wf, p.sites)
	if err != nil {
		return nil, err
	}

	runId := util.RunId()
	logger := log.WithFields(log.Fields{"run": runId})
	submitDir := filepath.Join(p.cfg.SubmitDir, runId)
	if err := os.MkdirAll(submitDir, 0755); err != nil {
		return nil, errors.Wrap(err, "cannot create submit dir")
	}
	logger.Infof("planning workflow %s (%d jobs) in %s", wf.Name, len(wf.Jobs), submitDir)

	d := dag.New(wf.Name)
	computes := map[string]*job.Job{}
	uses := map[string]proto.WorkflowJob{}
	for _, wj := range wf.Jobs {
		c, err := computeJob(wj)
		if err != nil {
			return nil, err
		}
		p.setExecutable(c, logger)
		if err := d.AddJob(c); err != nil {
			return nil, err
		}
		computes[c.Name] = c
		uses[c.Name] = wj
	}
	for _, wj := range wf.Jobs {
		for _, parent := range wj.Parents {
			if err := d.AddEdge(parent, wj.Name); err != nil {
				return nil, err
			}
		}
	}
	order, err := d.TopoSort()
	if err != nil {
		return nil, serr.InvalidWorkflow{Message: err.Error()}
	}

	policy := p.policy
	r, err := refiner.New(d, &implementation.Bag{
		Properties: p.props,
		Sites:      p.sites,
		TC:         p.tc,
		Policy:     &policy,
		SubmitDir:  submitDir,
		Log:        logger,
	})
	if err != nil {
		return nil, err
	}

	consumed := map[string]bool{}
	for _, wj := range wf.Jobs {
		for _, u := range wj.Uses {
			if u.Link == proto.LINK_INPUT {
				consumed[u.LFN] = true
			}
		}
	}

	for _, name := range order {
		c := computes[name]
		if err := p.refine(r, c, uses[name], runId, wf.OutputSite, producers, computes, consumed); err != nil {
			return nil, err
		}
	}
	if err := r.Done(); err != nil {
		return nil, err
	}

	plan := &Plan{
		RunId:     runId,
		SubmitDir: submitDir,
		DAG:       d,
	}
	logger.Infof("planned workflow %s: %d jobs, %d edges", wf.Name, len(d.Jobs), plan.EdgeCount())
	return plan, nil
}

// refine adds the transfer jobs of compute job c.
func (p *Planner) refine(r *refiner.Basic, c *job.Job, wj proto.WorkflowJob, runId, outputSite string,
	producers map[string]string, computes map[string]*job.Job, consumed map[string]bool) error {

	var in, links, out []*job.FileTransfer
	inter := map[string][]*job.FileTransfer{} // parent => files
	for _, u := range wj.Uses {
		switch u.Link {
		case proto.LINK_INPUT:
			dest, err := p.scratchURL(c.Site, runId, u.LFN)
			if err != nil {
				return err
			}
			if len(u.Sources) > 0 {
				f := &job.FileTransfer{
					LFN:          u.LFN,
					Sources:      u.Sources,
					Destinations: []job.URL{dest},
					Executable:   u.Executable,
				}
				if u.Symlink {
					links = append(links, f)
				} else {
					in = append(in, f)
				}
				continue
			}
			parent := computes[producers[u.LFN]]
			if parent.Site == c.Site {
				continue // shared scratch, ordered by the parent edge
			}
			src, err := p.scratchURL(parent.Site, runId, u.LFN)
			if err != nil {
				return err
			}
			inter[parent.Name] = append(inter[parent.Name], &job.FileTransfer{
				LFN:          u.LFN,
				Sources:      []job.URL{src},
				Destinations: []job.URL{dest},
				Executable:   u.Executable,
			})
		case proto.LINK_OUTPUT:
			src, err := p.scratchURL(c.Site, runId, u.LFN)
			if err != nil {
				return err
			}
			dests := u.Destinations
			if len(dests) == 0 {
				if outputSite == "" || consumed[u.LFN] {
					continue
				}
				dest, err := p.scratchURL(outputSite, runId, u.LFN)
				if err != nil {
					return err
				}
				dests = []job.URL{dest}
			}
			out = append(out, &job.FileTransfer{
				LFN:          u.LFN,
				Sources:      []job.URL{src},
				Destinations: dests,
			})
		}
	}

	if pkg := p.props.WorkerPackage(); pkg != "" && c.Site != job.SITE_LOCAL {
		lfn := pkg[strings.LastIndex(pkg, "/")+1:]
		dest, err := p.scratchURL(c.Site, runId, lfn)
		if err != nil {
			return err
		}
		f := &job.FileTransfer{
			LFN:          lfn,
			Sources:      []job.URL{{Site: job.SITE_LOCAL, PFN: pkg}},
			Destinations: []job.URL{dest},
		}
		if err := r.AddWorkerPackageStageIn(c, f); err != nil {
			return err
		}
	}

	parents := make([]string, 0, len(inter))
	for parent := range inter {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		if err := r.AddInterSiteTXNodes(c, parent, inter[parent]); err != nil {
			return err
		}
	}
	if len(in) > 0 || len(links) > 0 {
		if err := r.AddStageInXFERNodes(c, in, links); err != nil {
			return err
		}
	}
	if len(out) > 0 {
		if err := r.AddStageOutXFERNodes(c, out); err != nil {
			return err
		}
	}
	return nil
}

// setExecutable sets the executable of c from the transformation catalog.
// Catalog profiles are merged under the job's own profiles. A compute job
// without an entry keeps its transformation name for the scheduler to
// resolve.
func (p *Planner) setExecutable(c *job.Job, logger *log.Entry) {
	entries, err := p.tc.Lookup(c.Namespace, c.LogicalName, c.Version, c.Site, catalog.INSTALLED)
	if err != nil {
		logger.Debugf("Unable to retrieve entry from TC for %s: %s", c.CompleteTCName(), err)
	}
	if len(entries) == 0 {
		logger.Debugf("No TC entry for %s at site %s", c.CompleteTCName(), c.Site)
		return
	}
	e := entries[0]
	c.Executable = e.PhysicalPath
	profiles := e.Profiles.Clone()
	profiles.Update(c.Profiles)
	c.Profiles = profiles
	c.AddNotifications(e.Notifications)
}

// scratchURL returns the URL of lfn in the run directory of the shared
// scratch of site. A scratch dir without a scheme is a local path.
func (p *Planner) scratchURL(site, runId, lfn string) (job.URL, error) {
	s, ok := p.sites.Lookup(site)
	if !ok {
		return job.URL{}, serr.SiteNotFound{Site: site}
	}
	if s.SharedScratch == "" {
		return job.URL{}, serr.InvalidWorkflow{Message: fmt.Sprintf("site %s has no shared scratch directory", site)}
	}
	base := s.SharedScratch
	if u, err := url.Parse(base); err != nil || u.Scheme == "" {
		base = "file://" + base
	}
	return job.URL{
		Site: site,
		PFN:  strings.TrimSuffix(base, "/") + "/" + runId + "/" + lfn,
	}, nil
}
