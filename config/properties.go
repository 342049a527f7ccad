// Copyright 2020, Square, Inc.

package config

import (
	"github.com/square/xferplan/credential"
	"github.com/square/xferplan/job"
)

// Slot names: the job purposes a transfer implementation is chosen for.
const (
	SLOT_STAGE_IN  = "stage-in"
	SLOT_INTER     = "inter"
	SLOT_STAGE_OUT = "stage-out"
	SLOT_SETUP     = "setup"
	SLOT_SYMLINK   = "symlink"
)

// Properties is a read-only view of the planner config used while building
// jobs. The zero value returns defaults for everything.
type Properties struct {
	t        Transfer
	profiles job.Profiles
}

func NewProperties(cfg Planner) Properties {
	return Properties{
		t:        cfg.Transfer,
		profiles: cfg.Profiles.Clone(),
	}
}

// Priority returns the scheduler priority for transfer jobs of class c, or
// "" if none is set.
func (p Properties) Priority(c job.JobClass) string {
	switch c {
	case job.EJobClass.StageIn():
		return p.t.Priority.StageIn
	case job.EJobClass.StageOut():
		return p.t.Priority.StageOut
	case job.EJobClass.InterPool():
		return p.t.Priority.Inter
	}
	return ""
}

func (p Properties) ChmodDisabledSites() string {
	return p.t.ChmodDisabledSites
}

// ThirdPartySite returns true if transfers for site run on the submit host.
func (p Properties) ThirdPartySite(site string) bool {
	for _, s := range p.t.ThirdPartySites {
		if s == site || s == "*" {
			return true
		}
	}
	return false
}

func (p Properties) Bundle() int {
	if p.t.Bundle < 1 {
		return 1
	}
	return p.t.Bundle
}

// Threads returns the configured thread count, or "" to use the tool default.
func (p Properties) Threads() string {
	return p.t.Threads
}

func (p Properties) Processes() string {
	if p.t.Processes == "" {
		return DEFAULT_PROCESSES
	}
	return p.t.Processes
}

func (p Properties) Streams() string {
	if p.t.Streams == "" {
		return DEFAULT_STREAMS
	}
	return p.t.Streams
}

func (p Properties) Force() bool {
	return p.t.Force
}

func (p Properties) Arguments() string {
	return p.t.Arguments
}

func (p Properties) WorkerPackage() string {
	return p.t.WorkerPackage
}

func (p Properties) Credentials() credential.Files {
	return p.t.Credentials
}

// Profiles returns a copy of the properties profiles. A transfer.threads or
// transfer.arguments setting in the transfer section is included as the
// pegasus profile unless the profiles already set it.
func (p Properties) Profiles() job.Profiles {
	profiles := p.profiles.Clone()
	if p.t.Threads != "" {
		profiles.SetIfAbsent(job.PEGASUS, job.PEGASUS_TRANSFER_THREADS, p.t.Threads)
	}
	if p.t.Arguments != "" {
		profiles.SetIfAbsent(job.PEGASUS, job.PEGASUS_TRANSFER_ARGUMENTS, p.t.Arguments)
	}
	return profiles
}

// Impl returns the implementation name configured for slot, or DEFAULT_IMPL.
func (p Properties) Impl(slot string) string {
	var name string
	switch slot {
	case SLOT_STAGE_IN:
		name = p.t.Impl.StageIn
	case SLOT_INTER:
		name = p.t.Impl.Inter
	case SLOT_STAGE_OUT:
		name = p.t.Impl.StageOut
	case SLOT_SETUP:
		name = p.t.Impl.Setup
	case SLOT_SYMLINK:
		name = p.t.Impl.Symlink
	}
	if name == "" {
		return DEFAULT_IMPL
	}
	return name
}
