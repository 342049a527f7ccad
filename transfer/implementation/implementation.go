// Copyright 2020, Square, Inc.

// Package implementation builds transfer jobs: the jobs that stage a compute
// job's input files in, its output files out, and files between sites. Each
// transfer tool is an Implementation, chosen per job purpose by the Factory.
//
// Implementations share a Builder that holds the catalogs, the properties, and
// the Refiner (the task graph that jobs are added to). A tool that moves one
// file per job is a SingleProtocol wrapped by Single; a tool that moves many
// files per job from a manifest is a MultipleProtocol wrapped by Multiple.
//
// Every error returned while building a job is fatal to the planning run.
package implementation

import (
	"io"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/job"
)

// A Refiner is the task graph that transfer jobs and their auxiliary jobs
// are added to.
type Refiner interface {
	// AddJob adds a job to the graph.
	AddJob(j *job.Job) error

	// AddRelation adds an edge: parent runs before child.
	AddRelation(parent, child string) error

	// AddTransferRelation adds an edge from a transfer job to a job at site.
	// parentNew is true if the parent is a transfer job created in this pass.
	AddTransferRelation(parent, child, site string, parentNew bool) error
}

// An Implementation builds transfer jobs for one transfer tool.
type Implementation interface {
	// Description describes the transfer tool.
	Description() string

	// DoesPreserveXBit returns true if the tool keeps the executable bit of
	// the files it moves. If false, staged executables need a chmod job.
	DoesPreserveXBit() bool

	// UseThirdPartyTransferAlways returns true if transfers with the tool
	// always run on the submit host.
	UseThirdPartyTransferAlways() bool

	// SetRefiner sets the graph that auxiliary jobs are added to.
	SetRefiner(r Refiner)

	// CreateTransferJob returns a job running at site that moves files for
	// compute. execFiles are the files among them that must be executable
	// after the transfer; chmod jobs are added to the graph for them. The
	// returned job is not added to the graph.
	CreateTransferJob(compute *job.Job, site string, files, execFiles []*job.FileTransfer,
		name string, class job.JobClass) (*job.Job, error)

	// AddSetXBitJobs adds one chmod (or noop) job per file in execFiles
	// between the transfer job txName and compute. It returns true if any
	// job was added.
	AddSetXBitJobs(compute *job.Job, txName string, execFiles []*job.FileTransfer, class job.JobClass) (bool, error)

	// AddSetXBitJobsAt is AddSetXBitJobs with an explicit index: one job
	// covering all execFiles, named with index. Later AddSetXBitJobs calls
	// for the same compute job name their jobs after index.
	AddSetXBitJobsAt(compute *job.Job, txName string, execFiles []*job.FileTransfer, class job.JobClass, index int) (bool, error)

	// CreateSetXBitJob returns a chmod (or noop) job for execFiles named with
	// index. It is not added to the graph.
	CreateSetXBitJob(compute *job.Job, execFiles []*job.FileTransfer, class job.JobClass, index int) (*job.Job, error)

	// SetXBitJobName returns the name of the chmod job for compute job name.
	SetXBitJobName(name string, index int) string

	// NoOPJobName returns the name of the noop job for compute job name.
	NoOPJobName(name string, index int) string

	// TransformationEntry returns the catalog entry of the tool at site.
	TransformationEntry(site string, class job.JobClass) (*catalog.TransformationEntry, error)
}

// A Protocol is what a transfer tool fills into the common transfer job.
type Protocol interface {
	Description() string
	DoesPreserveXBit() bool
	UseThirdPartyTransferAlways() bool

	// Derivation returns the derivation namespace, name, and version of the
	// transfer job.
	Derivation() (ns, name, version string)

	// Entry returns the tool's catalog entry at site, or a default entry if
	// the catalog has none. It returns an error if neither exists.
	Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error)
}

// A SingleProtocol is a tool that moves one file per invocation.
type SingleProtocol interface {
	Protocol

	// ArgumentsAndCredentials returns the arguments to move file and records
	// the credentials the URLs need on tx.
	ArgumentsAndCredentials(tx *job.Job, file *job.FileTransfer) (string, error)
}

// A MultipleProtocol is a tool that moves many files per invocation, reading
// them from a manifest file.
type MultipleProtocol interface {
	Protocol

	// Arguments returns the tool arguments and the pegasus profile keys it
	// consumed. Consumed keys are removed from the job's profiles.
	Arguments(tx *job.Job) (args string, claimed []string)

	// WriteManifest writes the manifest of files to w and records the
	// credentials the URLs need on tx.
	WriteManifest(w io.Writer, tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error

	// PostProcess makes final changes to tx after it is built.
	PostProcess(tx *job.Job)
}
