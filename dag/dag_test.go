// Copyright 2017-2020, Square, Inc.

package dag_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/xferplan/dag"
	"github.com/square/xferplan/job"
)

func newDAG(t *testing.T, names []string, edges [][2]string) *dag.DAG {
	d := dag.New("test")
	for _, name := range names {
		if err := d.AddJob(&job.Job{Name: name, Class: job.EJobClass.Compute(), Site: "siteA"}); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range edges {
		if err := d.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestAddJobDuplicate(t *testing.T) {
	d := newDAG(t, []string{"a"}, nil)
	if err := d.AddJob(&job.Job{Name: "a"}); err == nil {
		t.Error("no error adding duplicate job")
	}
}

func TestAddEdge(t *testing.T) {
	d := newDAG(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	if diff := deep.Equal(d.Children("a"), []string{"b"}); diff != nil {
		t.Error(diff)
	}
	if diff := deep.Equal(d.Parents("b"), []string{"a"}); diff != nil {
		t.Error(diff)
	}
	if err := d.AddEdge("a", "nosuchjob"); err == nil {
		t.Error("no error adding edge to missing job")
	}
	if err := d.AddEdge("a", "a"); err == nil {
		t.Error("no error adding self edge")
	}
}

func TestHasCycles(t *testing.T) {
	d := newDAG(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})
	if d.HasCycles() {
		t.Error("acyclic graph has cycles")
	}
	d.AddEdge("c", "a")
	if !d.HasCycles() {
		t.Error("cycle not detected")
	}
	if _, err := d.TopoSort(); err == nil {
		t.Error("no error sorting cyclic graph")
	}
}

func TestTopoSort(t *testing.T) {
	//   c   a
	//    \ / \
	//     d   b
	//      \ /
	//       e
	d := newDAG(t, []string{"e", "d", "c", "b", "a"},
		[][2]string{{"a", "d"}, {"c", "d"}, {"a", "b"}, {"d", "e"}, {"b", "e"}})
	order, err := d.TopoSort()
	if err != nil {
		t.Fatal(err)
	}
	expect := []string{"a", "b", "c", "d", "e"}
	if diff := deep.Equal(order, expect); diff != nil {
		t.Error(diff)
	}
}

func TestHasPath(t *testing.T) {
	d := newDAG(t, []string{"tx", "chmod", "job", "other"},
		[][2]string{{"tx", "chmod"}, {"chmod", "job"}})
	if !d.HasPath("tx", "job") {
		t.Error("no path tx -> job")
	}
	if d.HasPath("job", "tx") {
		t.Error("path job -> tx")
	}
	if d.HasPath("tx", "other") {
		t.Error("path tx -> other")
	}
}

func TestWriteDot(t *testing.T) {
	d := newDAG(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	var buf bytes.Buffer
	d.WriteDot(&buf)
	out := buf.String()
	if !strings.HasPrefix(out, "digraph {\n") {
		t.Errorf("output does not start with digraph: %s", out)
	}
	if !strings.Contains(out, "\t\"a\" -> \"b\";\n") {
		t.Errorf("edge a -> b not in output: %s", out)
	}
}

func TestSlicesMatch(t *testing.T) {
	if !dag.SlicesMatch([]string{"a", "b"}, []string{"b", "a"}) {
		t.Error("slices do not match")
	}
	if dag.SlicesMatch([]string{"a"}, []string{"b"}) {
		t.Error("slices match")
	}
}
