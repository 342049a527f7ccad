// Copyright 2020, Square, Inc.

package planner

import (
	"io"
	"sort"

	"github.com/square/xferplan/dag"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/proto"
)

// A Plan is the result of one planning run.
type Plan struct {
	RunId     string
	SubmitDir string // where the run's manifests are
	DAG       *dag.DAG
}

func (p *Plan) EdgeCount() int {
	n := 0
	for _, children := range p.DAG.Edges {
		n += len(children)
	}
	return n
}

// WriteDot writes the planned workflow in DOT graph format.
func (p *Plan) WriteDot(w io.Writer) {
	p.DAG.WriteDot(w)
}

// Proto returns the plan as sent by the API: jobs in topological order and
// edges sorted by parent, then child.
func (p *Plan) Proto() (proto.Plan, error) {
	order, err := p.DAG.TopoSort()
	if err != nil {
		return proto.Plan{}, err
	}
	pp := proto.Plan{
		RunId:     p.RunId,
		SubmitDir: p.SubmitDir,
		Jobs:      make([]proto.Job, 0, len(order)),
		Edges:     []proto.Edge{},
	}
	for _, name := range order {
		pp.Jobs = append(pp.Jobs, protoJob(p.DAG.Jobs[name]))
	}
	for parent, children := range p.DAG.Edges {
		for _, child := range children {
			pp.Edges = append(pp.Edges, proto.Edge{Parent: parent, Child: child})
		}
	}
	sort.Slice(pp.Edges, func(i, j int) bool {
		if pp.Edges[i].Parent != pp.Edges[j].Parent {
			return pp.Edges[i].Parent < pp.Edges[j].Parent
		}
		return pp.Edges[i].Child < pp.Edges[j].Child
	})
	return pp, nil
}

func protoJob(j *job.Job) proto.Job {
	pj := proto.Job{
		Name:              j.Name,
		Id:                j.ID,
		Class:             j.Class.String(),
		Transformation:    j.CompleteTCName(),
		Site:              j.Site,
		StagingSite:       j.StagingSite,
		NonThirdPartySite: j.NonThirdPartySite,
		Universe:          j.Universe,
		Executable:        j.Executable,
		Arguments:         j.Arguments,
		Stdin:             j.Stdin,
		Notifications:     j.Notifications,
	}
	if len(j.Profiles) > 0 {
		pj.Profiles = map[string]map[string]string{}
		for ns := range j.Profiles {
			if len(j.Profiles[ns]) > 0 {
				pj.Profiles[string(ns)] = j.Profiles.Namespace(ns)
			}
		}
	}
	if len(j.Credentials) > 0 {
		pj.Credentials = map[string][]string{}
		for site, types := range j.Credentials {
			for _, t := range types {
				pj.Credentials[site] = append(pj.Credentials[site], t.String())
			}
		}
	}
	return pj
}
