// Copyright 2020, Square, Inc.

package implementation

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/square/xferplan/catalog"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

// MANIFEST_SUFFIX is appended to the transfer job name to name its manifest.
const MANIFEST_SUFFIX = ".in"

// Multiple is an Implementation that moves many files per transfer job. The
// files are listed in a manifest written to the submit dir; the job reads it
// on stdin.
type Multiple struct {
	*Builder
	proto MultipleProtocol
}

var _ Implementation = &Multiple{}

func NewMultiple(b *Builder, p MultipleProtocol) *Multiple {
	return &Multiple{
		Builder: b,
		proto:   p,
	}
}

func (m *Multiple) Description() string {
	return m.proto.Description()
}

func (m *Multiple) DoesPreserveXBit() bool {
	return m.proto.DoesPreserveXBit()
}

func (m *Multiple) UseThirdPartyTransferAlways() bool {
	return m.proto.UseThirdPartyTransferAlways()
}

func (m *Multiple) TransformationEntry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return m.proto.Entry(site, class)
}

// CreateTransferJob returns a job running at site that moves files for
// compute. The manifest <name>.in is written to the submit dir.
func (m *Multiple) CreateTransferJob(compute *job.Job, site string, files, execFiles []*job.FileTransfer,
	name string, class job.JobClass) (*job.Job, error) {
	if len(files) == 0 {
		return nil, serr.InvalidWorkflow{Message: "transfer job " + name + " has no files"}
	}
	for _, f := range files {
		if err := f.Validate(); err != nil {
			return nil, serr.InvalidWorkflow{Message: err.Error()}
		}
	}

	tx := m.newTransferJob(compute, site, name, class, files)

	entry, err := m.proto.Entry(site, class)
	if err != nil {
		if nf, ok := err.(serr.EntryNotFound); ok && nf.Job == "" {
			nf.Job = name
			return nil, nf
		}
		return nil, err
	}
	dvNS, dvName, dvVersion := m.proto.Derivation()
	if err := m.applyEntry(tx, entry, dvNS, dvName, dvVersion); err != nil {
		return nil, err
	}

	m.CheckAndTransferProxy(tx)
	m.CheckAndTransferIrodsEnvFile(tx)

	m.ApplyPriority(tx)

	tx.Stdin = name + MANIFEST_SUFFIX

	// Arguments may consume profile values. The job gets a new profile set
	// without them.
	args, claimed := m.proto.Arguments(tx)
	tx.Arguments = args
	if len(claimed) > 0 {
		m.logger.Debugf("Transfer job %s claimed pegasus profiles %v", name, claimed)
		tx.Profiles = tx.Profiles.Without(job.PEGASUS, claimed...)
	}

	if err := m.writeManifest(tx, files, stagingSite(compute), class); err != nil {
		return nil, err
	}

	if len(execFiles) > 0 && !workerNodeExecution(compute) {
		if _, err := m.AddSetXBitJobs(compute, name, execFiles, class); err != nil {
			return nil, err
		}
	}

	m.proto.PostProcess(tx)
	return tx, nil
}

// ManifestPath returns the path of the manifest of tx.
func (m *Multiple) ManifestPath(tx *job.Job) string {
	return filepath.Join(m.submitDir, tx.Stdin)
}

func (m *Multiple) writeManifest(tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error {
	lfns := make([]string, len(files))
	for i, f := range files {
		lfns[i] = f.LFN
	}
	fail := func(err error) error {
		return serr.ManifestWrite{Job: tx.Name, Files: lfns, Err: err}
	}

	f, err := os.Create(m.ManifestPath(tx))
	if err != nil {
		return fail(err)
	}
	w := bufio.NewWriter(f)
	if err := m.proto.WriteManifest(w, tx, files, stagingSite, class); err != nil {
		f.Close()
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(errors.Wrap(err, "closing manifest"))
	}
	return nil
}

// workerNodeExecution returns true if compute stages its own executables on
// the worker node, in which case no chmod job is needed.
func workerNodeExecution(compute *job.Job) bool {
	tp, _ := decodeTransferProfile(compute.Profiles)
	return tp.WorkerNode
}
