// Copyright 2020, Square, Inc.

// Package refiner adds transfer jobs to a planned workflow. For every compute
// job it adds the jobs that stage the job's inputs in, move files produced at
// other sites, and stage the job's outputs out, using the transfer
// implementation configured for each purpose.
package refiner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/square/xferplan/config"
	"github.com/square/xferplan/dag"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/transfer/implementation"
)

const (
	STAGE_IN_PREFIX       = "stage_in_"
	STAGE_OUT_PREFIX      = "stage_out_"
	INTER_POOL_PREFIX     = "stage_inter_"
	SYMLINK_PREFIX        = "stage_in_symlink_"
	WORKER_PACKAGE_PREFIX = "stage_worker_"

	LOCAL_PREFIX  = "local_"
	REMOTE_PREFIX = "remote_"
)

type edge struct {
	parent, child string
}

// staging is the job that staged a file and the chmod (or noop) job that
// made it executable, if any.
type staging struct {
	tx  string
	aux []string
}

// Basic is the default refiner. It implements implementation.Refiner over a
// DAG. Edges to jobs that are not in the graph yet are held until both jobs
// are added: chmod jobs are related to their transfer job before the
// transfer job itself is added.
type Basic struct {
	dag     *dag.DAG
	props   config.Properties
	impls   map[string]implementation.Implementation // keyed on slot
	pending []edge
	staged  map[string]staging  // lfn|dest url => transfer and chmod jobs
	aux     map[string][]string // transfer job => chmod jobs after it
	workers map[string]string   // site => worker package job
	inter   map[string]int      // compute job => inter-site jobs added
	logger  *log.Entry
}

// New returns a refiner adding jobs to d. The implementation of every slot is
// loaded from bag, with the refiner set as their graph.
func New(d *dag.DAG, bag *implementation.Bag) (*Basic, error) {
	if d == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if bag == nil {
		return nil, fmt.Errorf("nil bag")
	}
	logger := bag.Log
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	r := &Basic{
		dag:     d,
		props:   bag.Properties,
		impls:   map[string]implementation.Implementation{},
		staged:  map[string]staging{},
		aux:     map[string][]string{},
		workers: map[string]string{},
		inter:   map[string]int{},
		logger:  logger,
	}

	b := *bag
	b.Refiner = r
	for _, slot := range implementation.Slots() {
		impl, err := implementation.Load(&b, slot)
		if err != nil {
			return nil, err
		}
		r.impls[slot] = impl
		logger.Debugf("%s transfers with %s", slot, impl.Description())
	}
	return r, nil
}

// Implementation returns the implementation loaded for slot.
func (r *Basic) Implementation(slot string) implementation.Implementation {
	return r.impls[slot]
}

// AddJob adds j to the graph, then any held edge whose jobs are now both in
// the graph.
func (r *Basic) AddJob(j *job.Job) error {
	if err := r.dag.AddJob(j); err != nil {
		return err
	}
	return r.flush()
}

func (r *Basic) AddRelation(parent, child string) error {
	_, haveParent := r.dag.Jobs[parent]
	_, haveChild := r.dag.Jobs[child]
	if !haveParent || !haveChild {
		r.pending = append(r.pending, edge{parent: parent, child: child})
		return nil
	}
	return r.dag.AddEdge(parent, child)
}

// AddTransferRelation adds the edge from a transfer job to the chmod job
// that sets the executable bit of the files it moved.
func (r *Basic) AddTransferRelation(parent, child, site string, parentNew bool) error {
	r.logger.Debugf("Adding relation %s -> %s at site %s (new parent: %t)", parent, child, site, parentNew)
	if c, ok := r.dag.Jobs[child]; ok && c.Class == job.EJobClass.Chmod() {
		r.aux[parent] = append(r.aux[parent], child)
	}
	return r.AddRelation(parent, child)
}

// Done returns an error if an edge is still held because one of its jobs
// was never added.
func (r *Basic) Done() error {
	if len(r.pending) == 0 {
		return nil
	}
	missing := make([]string, len(r.pending))
	for i, e := range r.pending {
		missing[i] = e.parent + " -> " + e.child
	}
	return fmt.Errorf("relations to jobs not in the graph: %s", strings.Join(missing, ", "))
}

func (r *Basic) flush() error {
	held := r.pending
	r.pending = nil
	for i, e := range held {
		if err := r.AddRelation(e.parent, e.child); err != nil {
			r.pending = append(r.pending, held[i+1:]...)
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------

// AddStageInXFERNodes adds the jobs that stage files in for compute. Files
// are grouped by the site of their first source and spread over the
// configured number of jobs per site, or one job per file for single-file
// implementations. Files already staged to the same destination by another
// job are not staged again; compute runs after that job, and after its chmod
// job for executables, instead. symlinkFiles are symlinked through the
// symlink implementation.
func (r *Basic) AddStageInXFERNodes(compute *job.Job, files, symlinkFiles []*job.FileTransfer) error {
	impl := r.impls[config.SLOT_STAGE_IN]
	site := r.transferSite(impl, compute.Site)

	bySite := map[string][]*job.FileTransfer{}
	for _, f := range files {
		if prev, ok := r.staged[stagedKey(f)]; ok {
			r.logger.Debugf("File %s already staged by %s", f.LFN, prev.tx)
			if err := r.runAfter(prev, compute.Name); err != nil {
				return err
			}
			continue
		}
		src := f.Source().Site
		bySite[src] = append(bySite[src], f)
	}

	for _, src := range sortedKeys(bySite) {
		prefix := STAGE_IN_PREFIX + locality(site) + src + "_" + compute.Name + "_"
		for n, bundle := range r.bundles(impl, bySite[src]) {
			var execFiles []*job.FileTransfer
			if !impl.DoesPreserveXBit() {
				execFiles = executables(bundle)
			}
			name := fmt.Sprintf("%s%d", prefix, n)
			tx, err := impl.CreateTransferJob(compute, site, bundle, execFiles, name, job.EJobClass.StageIn())
			if err != nil {
				return errors.Wrapf(err, "stage-in for job %s", compute.Name)
			}
			if err := r.addTransfer(tx, "", compute.Name, bundle, execFiles); err != nil {
				return err
			}
		}
	}

	if len(symlinkFiles) == 0 {
		return nil
	}
	impl = r.impls[config.SLOT_SYMLINK]
	links := [][]*job.FileTransfer{symlinkFiles}
	if single(impl) {
		links = split(symlinkFiles, len(symlinkFiles))
	}
	for n, bundle := range links {
		name := fmt.Sprintf("%s%s_%d", SYMLINK_PREFIX, compute.Name, n)
		tx, err := impl.CreateTransferJob(compute, compute.Site, bundle, nil, name, job.EJobClass.SymlinkStageIn())
		if err != nil {
			return errors.Wrapf(err, "symlink stage-in for job %s", compute.Name)
		}
		if err := r.addTransfer(tx, "", compute.Name, bundle, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddStageOutXFERNodes adds the jobs that stage files out for compute,
// grouped by destination site and bundled like stage-in jobs.
func (r *Basic) AddStageOutXFERNodes(compute *job.Job, files []*job.FileTransfer) error {
	impl := r.impls[config.SLOT_STAGE_OUT]
	site := r.transferSite(impl, compute.Site)

	byDest := map[string][]*job.FileTransfer{}
	for _, f := range files {
		dest := f.Dest(true).Site
		byDest[dest] = append(byDest[dest], f)
	}

	for _, dest := range sortedKeys(byDest) {
		prefix := STAGE_OUT_PREFIX + locality(site) + dest + "_" + compute.Name + "_"
		for n, bundle := range r.bundles(impl, byDest[dest]) {
			name := fmt.Sprintf("%s%d", prefix, n)
			tx, err := impl.CreateTransferJob(compute, site, bundle, nil, name, job.EJobClass.StageOut())
			if err != nil {
				return errors.Wrapf(err, "stage-out for job %s", compute.Name)
			}
			if err := r.addTransfer(tx, compute.Name, "", nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddInterSiteTXNodes adds the jobs that move files produced by parent to
// the site of compute. Files already moved to the same destination are not
// moved again.
func (r *Basic) AddInterSiteTXNodes(compute *job.Job, parent string, files []*job.FileTransfer) error {
	impl := r.impls[config.SLOT_INTER]
	site := r.transferSite(impl, compute.Site)

	var move []*job.FileTransfer
	for _, f := range files {
		if prev, ok := r.staged[stagedKey(f)]; ok {
			if err := r.runAfter(prev, compute.Name); err != nil {
				return err
			}
			continue
		}
		move = append(move, f)
	}

	for _, bundle := range r.bundles(impl, move) {
		name := fmt.Sprintf("%s%s_%d", INTER_POOL_PREFIX, compute.Name, r.inter[compute.Name])
		r.inter[compute.Name]++
		tx, err := impl.CreateTransferJob(compute, site, bundle, nil, name, job.EJobClass.InterPool())
		if err != nil {
			return errors.Wrapf(err, "inter-site transfer for job %s", compute.Name)
		}
		if err := r.addTransfer(tx, parent, compute.Name, bundle, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddWorkerPackageStageIn stages the worker package file to the site of
// compute. It is staged once per site; later compute jobs at the site run
// after the same job.
func (r *Basic) AddWorkerPackageStageIn(compute *job.Job, file *job.FileTransfer) error {
	if name, ok := r.workers[compute.Site]; ok {
		return r.AddRelation(name, compute.Name)
	}
	impl := r.impls[config.SLOT_SETUP]
	site := r.transferSite(impl, compute.Site)
	name := WORKER_PACKAGE_PREFIX + compute.Site
	files := []*job.FileTransfer{file}
	tx, err := impl.CreateTransferJob(compute, site, files, nil, name, job.EJobClass.StageInWorkerPackage())
	if err != nil {
		return errors.Wrapf(err, "worker package stage-in for site %s", compute.Site)
	}
	if err := r.addTransfer(tx, "", compute.Name, files, nil); err != nil {
		return err
	}
	r.workers[compute.Site] = name
	return nil
}

// addTransfer adds tx with edges parent -> tx -> child. An empty parent or
// child is no edge. The destinations of staged files are recorded with the
// chmod jobs added for execFiles: one per file in order, or one for all.
func (r *Basic) addTransfer(tx *job.Job, parent, child string, staged, execFiles []*job.FileTransfer) error {
	if err := r.AddJob(tx); err != nil {
		return err
	}
	if parent != "" {
		if err := r.AddRelation(parent, tx.Name); err != nil {
			return err
		}
	}
	if child != "" {
		if err := r.AddRelation(tx.Name, child); err != nil {
			return err
		}
	}
	aux := r.aux[tx.Name]
	for _, f := range staged {
		s := staging{tx: tx.Name}
		if i := indexOf(execFiles, f); i > -1 {
			if len(aux) == len(execFiles) {
				s.aux = aux[i : i+1]
			} else {
				s.aux = aux
			}
		}
		r.staged[stagedKey(f)] = s
	}
	r.logger.Debugf("Added %s job %s at site %s", tx.Class, tx.Name, tx.Site)
	return nil
}

// runAfter adds the edges that make child run after the file staged by s
// is in place.
func (r *Basic) runAfter(s staging, child string) error {
	if err := r.AddRelation(s.tx, child); err != nil {
		return err
	}
	for _, x := range s.aux {
		if err := r.AddRelation(x, child); err != nil {
			return err
		}
	}
	return nil
}

// bundles splits files over the transfer jobs of one site: one file per job
// if impl moves a single file per job, else the configured bundle count.
func (r *Basic) bundles(impl implementation.Implementation, files []*job.FileTransfer) [][]*job.FileTransfer {
	if single(impl) {
		return split(files, len(files))
	}
	return split(files, r.props.Bundle())
}

func single(impl implementation.Implementation) bool {
	_, ok := impl.(*implementation.Single)
	return ok
}

// transferSite returns the site a transfer job for a job at site runs at:
// the submit host if the implementation always transfers third party or the
// site is configured so, else site.
func (r *Basic) transferSite(impl implementation.Implementation, site string) string {
	if impl.UseThirdPartyTransferAlways() || r.props.ThirdPartySite(site) {
		return job.SITE_LOCAL
	}
	return site
}

func locality(site string) string {
	if site == job.SITE_LOCAL {
		return LOCAL_PREFIX
	}
	return REMOTE_PREFIX
}

func stagedKey(f *job.FileTransfer) string {
	return f.LFN + "|" + f.Dest(true).PFN
}

func indexOf(files []*job.FileTransfer, f *job.FileTransfer) int {
	for i := range files {
		if files[i] == f {
			return i
		}
	}
	return -1
}

func executables(files []*job.FileTransfer) []*job.FileTransfer {
	var x []*job.FileTransfer
	for _, f := range files {
		if f.Executable {
			x = append(x, f)
		}
	}
	return x
}

// split spreads files round-robin over at most n lists.
func split(files []*job.FileTransfer, n int) [][]*job.FileTransfer {
	if n > len(files) {
		n = len(files)
	}
	if n < 1 {
		return nil
	}
	bundles := make([][]*job.FileTransfer, n)
	for i, f := range files {
		bundles[i%n] = append(bundles[i%n], f)
	}
	return bundles
}

func sortedKeys(m map[string][]*job.FileTransfer) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
