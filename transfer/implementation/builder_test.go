// Copyright 2020, Square, Inc.

package implementation_test

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/test"
	"github.com/square/xferplan/test/mock"
	"github.com/square/xferplan/transfer/implementation"
)

// testSites are the sites used by every test: local, siteA and grid have the
// planner tools installed, grid has globus, siteB has nothing.
func testSites() *catalog.Sites {
	return catalog.NewSites(
		&catalog.SiteEntry{
			Handle: "local",
			Profiles: job.Profiles{
				job.ENV: {job.ENV_PEGASUS_HOME: "/usr/local/pegasus"},
			},
		},
		&catalog.SiteEntry{
			Handle: "siteA",
			Profiles: job.Profiles{
				job.ENV: {job.ENV_PEGASUS_HOME: "/opt/pegasus"},
			},
		},
		&catalog.SiteEntry{
			Handle: "siteB",
		},
		&catalog.SiteEntry{
			Handle: "grid",
			Profiles: job.Profiles{
				job.ENV: {
					job.ENV_PEGASUS_HOME:    "/opt/pegasus/",
					job.ENV_GLOBUS_LOCATION: "/opt/globus",
				},
			},
		},
	)
}

// setup returns a bag with a temp submit dir that is removed when the test ends.
func setup(t *testing.T, cfg config.Planner) (*implementation.Bag, *mock.Refiner) {
	dir, err := ioutil.TempDir("", "xferplan-impl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	r := &mock.Refiner{}
	bag := &implementation.Bag{
		Properties: config.NewProperties(cfg),
		Sites:      testSites(),
		TC:         catalog.NewMemoryCatalog(),
		Refiner:    r,
		SubmitDir:  dir,
	}
	return bag, r
}

func newBuilder(t *testing.T, bag *implementation.Bag) *implementation.Builder {
	b, err := implementation.NewBuilder(bag, "test")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func execFiles(n int, site string) []*job.FileTransfer {
	files := test.InitFiles(n, "local", site)
	for _, f := range files {
		f.Executable = true
	}
	return files
}

func TestNewBuilderErrors(t *testing.T) {
	if _, err := implementation.NewBuilder(nil, "test"); err == nil {
		t.Error("no error with nil bag, expected one")
	}
	if _, err := implementation.NewBuilder(&implementation.Bag{}, "test"); err == nil {
		t.Error("no error without catalogs, expected one")
	}
}

func TestParseDisabledSites(t *testing.T) {
	tests := []struct {
		in       string
		disabled []string
		enabled  []string
	}{
		{"", nil, []string{"siteA", "local"}},
		{"siteA", []string{"siteA"}, []string{"siteB"}},
		{"siteA siteB", []string{"siteA", "siteB"}, []string{"siteC"}},
		{" siteA,\tsiteB ,siteC ", []string{"siteA", "siteB", "siteC"}, []string{"local"}},
		{"siteA *", []string{"siteA", "siteB", "local"}, nil},
	}
	for _, tt := range tests {
		p := implementation.ParseDisabledSites(tt.in)
		for _, site := range tt.disabled {
			if !p.Disabled(site) {
				t.Errorf("%q: site %s enabled, expected disabled", tt.in, site)
			}
		}
		for _, site := range tt.enabled {
			if p.Disabled(site) {
				t.Errorf("%q: site %s disabled, expected enabled", tt.in, site)
			}
		}
	}
}

func TestApplyPriority(t *testing.T) {
	cfg := config.Planner{}
	cfg.Transfer.Priority.StageIn = "10"
	bag, _ := setup(t, cfg)
	b := newBuilder(t, bag)

	in := &job.Job{Class: job.EJobClass.StageIn()}
	b.ApplyPriority(in)
	if diff := deep.Equal(in.Profiles, job.Profiles{job.CONDOR: {job.CONDOR_PRIORITY: "10"}}); diff != nil {
		t.Error(diff)
	}

	// No priority for stage-out: nothing set
	out := &job.Job{Class: job.EJobClass.StageOut()}
	b.ApplyPriority(out)
	if out.Profiles.Has(job.CONDOR, job.CONDOR_PRIORITY) {
		t.Errorf("priority set for stage-out job: %v", out.Profiles)
	}
}

func TestAddSetXBitJobs(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	added, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(2, "siteA"), job.EJobClass.StageIn())
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Error("added = false, expected true")
	}

	if diff := deep.Equal(r.JobNames(), []string{"chmod_mainjob_0", "chmod_mainjob_1"}); diff != nil {
		t.Error(diff)
	}
	expectRelations := []mock.Relation{
		{Parent: "stage_in_0", Child: "chmod_mainjob_0", Site: "siteA", Transfer: true, ParentNew: true},
		{Parent: "chmod_mainjob_0", Child: "mainjob"},
		{Parent: "stage_in_0", Child: "chmod_mainjob_1", Site: "siteA", Transfer: true, ParentNew: true},
		{Parent: "chmod_mainjob_1", Child: "mainjob"},
	}
	if diff := deep.Equal(r.Relations, expectRelations); diff != nil {
		t.Error(diff)
	}

	expect := &job.Job{
		Name:        "chmod_mainjob_0",
		ID:          "chmod_mainjob_0",
		Namespace:   "system",
		LogicalName: "chmod",
		DVNamespace: "system",
		DVName:      "chmod",
		Site:        "siteA",
		StagingSite: "siteA",
		Universe:    job.UNIVERSE_AUXILLARY,
		Executable:  "/bin/chmod",
		Arguments:   " +x  /scratch/f1",
		Class:       job.EJobClass.Chmod(),
		Profiles: job.Profiles{
			job.ENV: {job.ENV_PEGASUS_HOME: "/opt/pegasus"},
		},
	}
	if diff := deep.Equal(r.Jobs[0], expect); diff != nil {
		t.Error(diff)
	}

	// The default chmod entry was registered
	entries, _ := bag.TC.Lookup("system", "chmod", "", "siteA", catalog.INSTALLED)
	if len(entries) != 1 || entries[0].PhysicalPath != "/bin/chmod" {
		t.Errorf("default chmod entry not registered: %+v", entries)
	}
}

func TestAddSetXBitJobsDisabled(t *testing.T) {
	cfg := config.Planner{}
	cfg.Transfer.ChmodDisabledSites = "siteB, siteA"
	bag, r := setup(t, cfg)
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	added, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(2, "siteA"), job.EJobClass.StageIn())
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Error("added = false, expected true")
	}

	if diff := deep.Equal(r.JobNames(), []string{"noop_mainjob_0", "noop_mainjob_1"}); diff != nil {
		t.Error(diff)
	}
	// Same graph position as chmod jobs
	expectRelations := []mock.Relation{
		{Parent: "stage_in_0", Child: "noop_mainjob_0", Site: "local", Transfer: true, ParentNew: true},
		{Parent: "noop_mainjob_0", Child: "mainjob"},
		{Parent: "stage_in_0", Child: "noop_mainjob_1", Site: "local", Transfer: true, ParentNew: true},
		{Parent: "noop_mainjob_1", Child: "mainjob"},
	}
	if diff := deep.Equal(r.Relations, expectRelations); diff != nil {
		t.Error(diff)
	}
	if r.Jobs[0].StagingSite != "siteA" {
		t.Errorf("noop staging site %s, expected siteA", r.Jobs[0].StagingSite)
	}
}

func TestAddSetXBitJobsAllDisabled(t *testing.T) {
	cfg := config.Planner{}
	cfg.Transfer.ChmodDisabledSites = "*"
	bag, r := setup(t, cfg)
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteB"}

	if _, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(1, "siteB"), job.EJobClass.StageIn()); err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(r.JobNames(), []string{"noop_mainjob_0"}); diff != nil {
		t.Error(diff)
	}
}

func TestAddSetXBitJobsAt(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	added, err := b.AddSetXBitJobsAt(compute, "stage_in_3", execFiles(2, "siteA"), job.EJobClass.StageIn(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Error("added = false, expected true")
	}
	if diff := deep.Equal(r.JobNames(), []string{"chmod_mainjob_3"}); diff != nil {
		t.Error(diff)
	}
	if r.Jobs[0].Arguments != " +x  /scratch/f1 /scratch/f2" {
		t.Errorf("got arguments %q", r.Jobs[0].Arguments)
	}
}

func TestAddSetXBitJobsAfterIndex(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	if _, err := b.AddSetXBitJobsAt(compute, "stage_in_0", execFiles(1, "siteA"), job.EJobClass.StageIn(), 3); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddSetXBitJobs(compute, "stage_in_1", execFiles(1, "siteA"), job.EJobClass.StageIn()); err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(r.JobNames(), []string{"chmod_mainjob_3", "chmod_mainjob_4"}); diff != nil {
		t.Error(diff)
	}
}

func TestAddSetXBitJobsTwoDestinations(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	// The transfer manifests write exeaa to its second destination
	f := &job.FileTransfer{
		LFN:        "exeaa",
		Executable: true,
		Sources:    []job.URL{{Site: "local", PFN: "file:///data/exeaa"}},
		Destinations: []job.URL{
			{Site: "siteB", PFN: "gsiftp://siteB/d0/exeaa"},
			{Site: "siteA", PFN: "gsiftp://siteA/d1/exeaa"},
		},
	}
	if got := f.Dest(true).PFN; got != "gsiftp://siteA/d1/exeaa" {
		t.Fatalf("transfer destination %s, expected gsiftp://siteA/d1/exeaa", got)
	}

	if _, err := b.AddSetXBitJobs(compute, "stage_in_0", []*job.FileTransfer{f}, job.EJobClass.StageIn()); err != nil {
		t.Fatal(err)
	}
	if len(r.Jobs) != 1 {
		t.Fatalf("got %d jobs, expected 1", len(r.Jobs))
	}
	if r.Jobs[0].Arguments != " +x  /d1/exeaa" {
		t.Errorf("got arguments %q, expected %q", r.Jobs[0].Arguments, " +x  /d1/exeaa")
	}
	if r.Jobs[0].Site != "siteA" {
		t.Errorf("chmod job at site %s, expected siteA", r.Jobs[0].Site)
	}
}

func TestAddSetXBitJobsNoFiles(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	added, err := b.AddSetXBitJobs(compute, "stage_in_0", nil, job.EJobClass.StageIn())
	if err != nil {
		t.Fatal(err)
	}
	if added {
		t.Error("added = true, expected false")
	}
	if len(r.Jobs) != 0 || len(r.Relations) != 0 {
		t.Errorf("graph changed: %v %v", r.Jobs, r.Relations)
	}
}

func TestAddSetXBitJobsContractViolation(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	for _, c := range []job.JobClass{job.EJobClass.StageOut(), job.EJobClass.InterPool(), job.EJobClass.StageInWorkerPackage()} {
		_, err := b.AddSetXBitJobs(compute, "tx", execFiles(1, "siteA"), c)
		if _, ok := err.(serr.ContractViolation); !ok {
			t.Errorf("class %s: got err %v (%T), expected ContractViolation", c, err, err)
		}
		_, err = b.AddSetXBitJobsAt(compute, "tx", execFiles(1, "siteA"), c, 0)
		if _, ok := err.(serr.ContractViolation); !ok {
			t.Errorf("class %s: got err %v (%T), expected ContractViolation", c, err, err)
		}
		_, err = b.CreateSetXBitJob(compute, execFiles(1, "siteA"), c, 0)
		if _, ok := err.(serr.ContractViolation); !ok {
			t.Errorf("class %s: got err %v (%T), expected ContractViolation", c, err, err)
		}
	}
	if len(r.Jobs) != 0 {
		t.Errorf("jobs added: %v", r.JobNames())
	}
}

func TestCreateNoOPJob(t *testing.T) {
	bag, _ := setup(t, config.Planner{})
	b := newBuilder(t, bag)

	got := b.CreateNoOPJob("noop_mainjob_0", "siteA")
	expect := &job.Job{
		Name:        "noop_mainjob_0",
		ID:          "noop_mainjob_0",
		Namespace:   "pegasus",
		LogicalName: "noop",
		Version:     "1.0",
		DVNamespace: "pegasus",
		DVName:      "noop",
		DVVersion:   "1.0",
		Site:        "local",
		StagingSite: "siteA",
		Universe:    job.UNIVERSE_AUXILLARY,
		Executable:  "/bin/true",
		Class:       job.EJobClass.Chmod(),
		Profiles: job.Profiles{
			job.DAGMAN: {job.DAGMAN_NOOP: "true"},
			job.CONDOR: {
				job.CONDOR_NOOP_JOB:           "true",
				job.CONDOR_NOOP_JOB_EXIT_CODE: "0",
			},
			job.PEGASUS: {job.PEGASUS_GRIDSTART: "None"},
		},
	}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
}

func TestCreateSetXBitJobCatalogEntry(t *testing.T) {
	bag, _ := setup(t, config.Planner{})
	bag.TC = catalog.NewMemoryCatalog(&catalog.TransformationEntry{
		Namespace:    "system",
		Name:         "chmod",
		Site:         "siteA",
		PhysicalPath: "/usr/bin/chmod",
		Type:         catalog.INSTALLED,
		Profiles:     job.Profiles{job.ENV: {"FOO": "tc"}},
	})
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	x, err := b.CreateSetXBitJob(compute, execFiles(1, "siteA"), job.EJobClass.StageIn(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if x.Executable != "/usr/bin/chmod" {
		t.Errorf("executable %s, expected /usr/bin/chmod", x.Executable)
	}
	if v, _ := x.Profiles.Get(job.ENV, "FOO"); v != "tc" {
		t.Errorf("env FOO = %q, expected tc", v)
	}
}

func TestCreateSetXBitJobLookupError(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	bag.TC = &mock.TransformationCatalog{
		LookupFunc: func(ns, name, version, site string, t catalog.EntryType) ([]*catalog.TransformationEntry, error) {
			return nil, mock.ErrCatalog
		},
	}
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	_, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(1, "siteA"), job.EJobClass.StageIn())
	if err == nil {
		t.Fatal("no error, expected EntryNotFound")
	}
	nf, ok := errors.Cause(err).(serr.EntryNotFound)
	if !ok {
		t.Fatalf("got err %v (%T), expected EntryNotFound", err, errors.Cause(err))
	}
	if nf.Name != "system::chmod" || nf.Site != "siteA" {
		t.Errorf("got %+v", nf)
	}
	if len(r.Jobs) != 0 {
		t.Errorf("jobs added: %v", r.JobNames())
	}
}

func TestDefaultEntryRegistrationFailure(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	tc := &mock.TransformationCatalog{
		InsertFunc: func(e *catalog.TransformationEntry, overwrite bool) error {
			return mock.ErrCatalog
		},
	}
	bag.TC = tc
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	// Registration is best-effort: the job is still built
	if _, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(1, "siteA"), job.EJobClass.StageIn()); err != nil {
		t.Fatal(err)
	}
	if len(r.Jobs) != 1 || r.Jobs[0].Executable != "/bin/chmod" {
		t.Errorf("got jobs %+v", r.Jobs)
	}
	if len(tc.Inserted) != 1 {
		t.Errorf("%d inserts, expected 1", len(tc.Inserted))
	}
}

func TestDefaultEntry(t *testing.T) {
	bag, _ := setup(t, config.Planner{})
	b := newBuilder(t, bag)

	e, err := b.DefaultEntry("pegasus", "transfer", "", "pegasus-transfer", "grid", "/opt/pegasus/", job.ENV_PEGASUS_HOME, nil)
	if err != nil {
		t.Fatal(err)
	}
	expect := &catalog.TransformationEntry{
		Namespace:    "pegasus",
		Name:         "transfer",
		Site:         "grid",
		PhysicalPath: "/opt/pegasus/bin/pegasus-transfer",
		Type:         catalog.INSTALLED,
		SysInfo:      catalog.DEFAULT_SYSINFO,
	}
	if diff := deep.Equal(e, expect); diff != nil {
		t.Error(diff)
	}

	_, err = b.DefaultEntry("pegasus", "transfer", "", "pegasus-transfer", "siteB", "", job.ENV_PEGASUS_HOME, nil)
	nf, ok := err.(serr.EntryNotFound)
	if !ok {
		t.Fatalf("got err %v (%T), expected EntryNotFound", err, err)
	}
	if nf.Hint != job.ENV_PEGASUS_HOME {
		t.Errorf("hint %q, expected %s", nf.Hint, job.ENV_PEGASUS_HOME)
	}
}

func TestDefaultEntryUnknownSite(t *testing.T) {
	bag, _ := setup(t, config.Planner{})
	bag.Sites = &mock.SiteStore{
		LookupFunc: func(handle string) (*catalog.SiteEntry, bool) {
			return nil, false
		},
	}
	b := newBuilder(t, bag)

	_, err := b.DefaultEntry("pegasus", "transfer", "", "pegasus-transfer", "gone", "/opt/pegasus", job.ENV_PEGASUS_HOME, nil)
	expect := serr.EntryNotFound{Name: "pegasus::transfer", Site: "gone"}
	if diff := deep.Equal(err, expect); diff != nil {
		t.Error(diff)
	}
}

func TestRefinerErrors(t *testing.T) {
	bag, r := setup(t, config.Planner{})
	r.AddRelationErr = mock.ErrRefiner
	b := newBuilder(t, bag)
	compute := &job.Job{Name: "mainjob", Site: "siteA"}

	_, err := b.AddSetXBitJobs(compute, "stage_in_0", execFiles(1, "siteA"), job.EJobClass.StageIn())
	if err != mock.ErrRefiner {
		t.Errorf("got err %v, expected %v", err, mock.ErrRefiner)
	}
}
