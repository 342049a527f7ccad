// Copyright 2020, Square, Inc.

package job_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/square/xferplan/job"
)

func TestProfilesOverlay(t *testing.T) {
	site := job.Profiles{job.ENV: {"FOO": "site", "SITE_ONLY": "1"}}
	tc := job.Profiles{job.ENV: {"FOO": "tc"}, job.CONDOR: {"priority": "10"}}
	props := job.Profiles{job.ENV: {"FOO": "props"}}

	var p job.Profiles
	p.Update(site)
	p.Update(tc)
	p.Update(props)

	expect := job.Profiles{
		job.ENV:    {"FOO": "props", "SITE_ONLY": "1"},
		job.CONDOR: {"priority": "10"},
	}
	if diff := deep.Equal(p, expect); diff != nil {
		t.Error(diff)
	}

	// Sources are not modified
	if v, _ := site.Get(job.ENV, "FOO"); v != "site" {
		t.Errorf("site profile modified: FOO=%s", v)
	}
}

func TestProfilesWithout(t *testing.T) {
	p := job.Profiles{job.PEGASUS: {job.PEGASUS_TRANSFER_ARGUMENTS: "-v", job.PEGASUS_TRANSFER_THREADS: "4"}}
	c := p.Without(job.PEGASUS, job.PEGASUS_TRANSFER_ARGUMENTS)
	if c.Has(job.PEGASUS, job.PEGASUS_TRANSFER_ARGUMENTS) {
		t.Error("copy still has transfer.arguments")
	}
	if !p.Has(job.PEGASUS, job.PEGASUS_TRANSFER_ARGUMENTS) {
		t.Error("original lost transfer.arguments")
	}
	if diff := deep.Equal(c.Keys(job.PEGASUS), []string{job.PEGASUS_TRANSFER_THREADS}); diff != nil {
		t.Error(diff)
	}
}

func TestProfilesSetIfAbsentAndAppendList(t *testing.T) {
	var p job.Profiles
	p.SetIfAbsent(job.PEGASUS, job.PEGASUS_GRIDSTART, "None")
	p.SetIfAbsent(job.PEGASUS, job.PEGASUS_GRIDSTART, "Kickstart")
	if v, _ := p.Get(job.PEGASUS, job.PEGASUS_GRIDSTART); v != "None" {
		t.Errorf("gridstart = %s, expected None", v)
	}

	p.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, "/tmp/a")
	p.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, "/tmp/b")
	p.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, "/tmp/a")
	if v, _ := p.Get(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES); v != "/tmp/a,/tmp/b" {
		t.Errorf("transfer_input_files = %s, expected /tmp/a,/tmp/b", v)
	}
}

func TestParseNamespace(t *testing.T) {
	ns, err := job.ParseNamespace("Condor")
	if err != nil {
		t.Fatal(err)
	}
	if ns != job.CONDOR {
		t.Errorf("got %s, expected condor", ns)
	}
	if _, err := job.ParseNamespace("hints"); err != job.ErrUnknownNamespace {
		t.Errorf("err = %v, expected ErrUnknownNamespace", err)
	}
}
