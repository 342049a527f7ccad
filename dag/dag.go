// Copyright 2017-2020, Square, Inc.

// Package dag provides the planned workflow: jobs and the precedence edges
// between them.
package dag

import (
	"fmt"
	"io"
	"sort"

	"github.com/square/xferplan/job"
)

// DAG represents a workflow via Jobs, a map of job name -> Job, and Edges, an
// adjacency list. RevEdges is the reverse adjacency list, kept in sync.
type DAG struct {
	Name     string              // Name of the workflow
	Jobs     map[string]*job.Job // All jobs in the graph (job name -> job)
	Edges    map[string][]string // All edges (parent -> children)
	RevEdges map[string][]string // All edges (child -> parents)
}

func New(name string) *DAG {
	return &DAG{
		Name:     name,
		Jobs:     map[string]*job.Job{},
		Edges:    map[string][]string{},
		RevEdges: map[string][]string{},
	}
}

// AddJob adds j. A job name can be added only once.
func (d *DAG) AddJob(j *job.Job) error {
	if j == nil {
		return fmt.Errorf("nil job")
	}
	if _, ok := d.Jobs[j.Name]; ok {
		return fmt.Errorf("job %s already in graph", j.Name)
	}
	d.Jobs[j.Name] = j
	return nil
}

// AddEdge adds parent -> child. Adding an existing edge is a no-op. Both
// jobs must be in the graph.
func (d *DAG) AddEdge(parent, child string) error {
	if _, ok := d.Jobs[parent]; !ok {
		return fmt.Errorf("parent job %s not in graph", parent)
	}
	if _, ok := d.Jobs[child]; !ok {
		return fmt.Errorf("child job %s not in graph", child)
	}
	if parent == child {
		return fmt.Errorf("self edge on job %s", parent)
	}
	if find(d.Edges[parent], child) >= 0 {
		return nil
	}
	d.Edges[parent] = append(d.Edges[parent], child)
	d.RevEdges[child] = append(d.RevEdges[child], parent)
	return nil
}

// Children returns the children of name, in the order the edges were added.
func (d *DAG) Children(name string) []string {
	return append([]string{}, d.Edges[name]...)
}

// Parents returns the parents of name, in the order the edges were added.
func (d *DAG) Parents(name string) []string {
	return append([]string{}, d.RevEdges[name]...)
}

// HasEdge returns true if parent -> child is in the graph.
func (d *DAG) HasEdge(parent, child string) bool {
	return find(d.Edges[parent], child) >= 0
}

// HasPath returns true if to is reachable from from.
func (d *DAG) HasPath(from, to string) bool {
	seen := map[string]bool{}
	var dfs func(string) bool
	dfs = func(n string) bool {
		if n == to {
			return true
		}
		seen[n] = true
		for _, next := range d.Edges[n] {
			if !seen[next] && dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// returns true iff the graph has at least one cycle in it
func (d *DAG) HasCycles() bool {
	const (
		unvisited = iota
		inStack
		done
	)
	state := map[string]int{}
	var hasCyclesDFS func(string) bool
	hasCyclesDFS = func(n string) bool {
		state[n] = inStack
		for _, next := range d.Edges[n] {
			switch state[next] {
			case inStack:
				return true
			case unvisited:
				if hasCyclesDFS(next) {
					return true
				}
			}
		}
		state[n] = done
		return false
	}
	for _, name := range d.names() {
		if state[name] == unvisited && hasCyclesDFS(name) {
			return true
		}
	}
	return false
}

// TopoSort returns job names so that every parent comes before its children.
// Ties are broken by name, so the order is the same for the same graph.
func (d *DAG) TopoSort() ([]string, error) {
	indegree := map[string]int{}
	for name := range d.Jobs {
		indegree[name] = len(d.RevEdges[name])
	}
	ready := []string{}
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(d.Jobs))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		next := []string{}
		for _, child := range d.Edges[name] {
			indegree[child]--
			if indegree[child] == 0 {
				next = append(next, child)
			}
		}
		if len(next) > 0 {
			ready = append(ready, next...)
			sort.Strings(ready)
		}
	}
	if len(order) != len(d.Jobs) {
		return nil, fmt.Errorf("graph %s has cycles", d.Name)
	}
	return order, nil
}

// Writes out d in DOT graph format.
func (d *DAG) WriteDot(w io.Writer) {
	fmt.Fprintf(w, "digraph {\n")
	fmt.Fprintf(w, "\trankdir=UD;\n")
	fmt.Fprintf(w, "\tlabelloc=\"t\";\n")
	fmt.Fprintf(w, "\tlabel=\"%s\"\n", d.Name)
	fmt.Fprintf(w, "\tfontsize=22\n")
	for _, name := range d.names() {
		j := d.Jobs[name]
		fmt.Fprintf(w, "\tnode [style=filled,color=\"%s\",shape=box]\n", dotColor(j.Class))
		fmt.Fprintf(w, "\t\"%s\" [label=\"%s\\n %s @ %s\"]\n", name, name, j.Class, j.Site)
	}
	for _, out := range d.names() {
		for _, in := range d.Edges[out] {
			fmt.Fprintf(w, "\t\"%s\" -> \"%s\";\n", out, in)
		}
	}
	fmt.Fprintln(w, "}")
}

// Returns true if a matches b, regardless of ordering
func SlicesMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if find(b, a[i]) < 0 {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------

func (d *DAG) names() []string {
	names := make([]string, 0, len(d.Jobs))
	for name := range d.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dotColor(c job.JobClass) string {
	switch c {
	case job.EJobClass.Compute():
		return "#86cedf"
	case job.EJobClass.Chmod():
		return "#dddddd"
	}
	return "#f4c542"
}

// returns the index of s in ss, returns -1 if s is not found in ss
func find(ss []string, s string) int {
	for i, j := range ss {
		if j == s {
			return i
		}
	}
	return -1
}
