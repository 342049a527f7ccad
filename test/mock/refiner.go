// Copyright 2020, Square, Inc.

package mock

import (
	"errors"

	"github.com/square/xferplan/job"
)

var (
	ErrRefiner = errors.New("forced error in refiner")
)

// Relation is an edge added to a Refiner.
type Relation struct {
	Parent    string
	Child     string
	Site      string // only transfer relations
	Transfer  bool
	ParentNew bool
}

// Refiner records the jobs and relations added to it, in order.
type Refiner struct {
	Jobs           []*job.Job
	Relations      []Relation
	AddJobErr      error
	AddRelationErr error
}

func (r *Refiner) AddJob(j *job.Job) error {
	if r.AddJobErr != nil {
		return r.AddJobErr
	}
	r.Jobs = append(r.Jobs, j)
	return nil
}

func (r *Refiner) AddRelation(parent, child string) error {
	if r.AddRelationErr != nil {
		return r.AddRelationErr
	}
	r.Relations = append(r.Relations, Relation{Parent: parent, Child: child})
	return nil
}

func (r *Refiner) AddTransferRelation(parent, child, site string, parentNew bool) error {
	if r.AddRelationErr != nil {
		return r.AddRelationErr
	}
	r.Relations = append(r.Relations, Relation{
		Parent:    parent,
		Child:     child,
		Site:      site,
		Transfer:  true,
		ParentNew: parentNew,
	})
	return nil
}

// JobNames returns the names of the jobs added, in order.
func (r *Refiner) JobNames() []string {
	names := make([]string, len(r.Jobs))
	for i, j := range r.Jobs {
		names[i] = j.Name
	}
	return names
}
