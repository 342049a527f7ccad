// Copyright 2020, Square, Inc.

package implementation

import (
	"github.com/square/xferplan/catalog"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

// Single is an Implementation that moves exactly one file per transfer job.
type Single struct {
	*Builder
	proto SingleProtocol
}

var _ Implementation = &Single{}

func NewSingle(b *Builder, p SingleProtocol) *Single {
	return &Single{
		Builder: b,
		proto:   p,
	}
}

func (s *Single) Description() string {
	return s.proto.Description()
}

func (s *Single) DoesPreserveXBit() bool {
	return s.proto.DoesPreserveXBit()
}

func (s *Single) UseThirdPartyTransferAlways() bool {
	return s.proto.UseThirdPartyTransferAlways()
}

func (s *Single) TransformationEntry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return s.proto.Entry(site, class)
}

// CreateTransferJob returns an error if files does not have exactly one file.
func (s *Single) CreateTransferJob(compute *job.Job, site string, files, execFiles []*job.FileTransfer,
	name string, class job.JobClass) (*job.Job, error) {
	if len(files) == 0 {
		return nil, serr.InvalidWorkflow{Message: "transfer job " + name + " has no files"}
	}
	if len(files) > 1 {
		return nil, serr.MultipleFiles{Description: s.Description(), Count: len(files)}
	}
	return s.CreateTransferJobForFile(compute, site, files[0], execFiles, name, class)
}

// CreateTransferJobForFile returns a job running at site that moves file.
func (s *Single) CreateTransferJobForFile(compute *job.Job, site string, file *job.FileTransfer,
	execFiles []*job.FileTransfer, name string, class job.JobClass) (*job.Job, error) {
	if err := file.Validate(); err != nil {
		return nil, serr.InvalidWorkflow{Message: err.Error()}
	}

	tx := s.newTransferJob(compute, site, name, class, []*job.FileTransfer{file})

	entry, err := s.proto.Entry(site, class)
	if err != nil {
		if nf, ok := err.(serr.EntryNotFound); ok && nf.Job == "" {
			nf.Job = name
			return nil, nf
		}
		return nil, err
	}
	dvNS, dvName, dvVersion := s.proto.Derivation()
	if err := s.applyEntry(tx, entry, dvNS, dvName, dvVersion); err != nil {
		return nil, err
	}

	s.ApplyPriority(tx)

	args, err := s.proto.ArgumentsAndCredentials(tx, file)
	if err != nil {
		return nil, err
	}
	tx.Arguments = args

	if len(execFiles) > 0 {
		if _, err := s.AddSetXBitJobs(compute, name, execFiles, class); err != nil {
			return nil, err
		}
	}
	return tx, nil
}
