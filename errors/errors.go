// Copyright 2019-2020, Square, Inc.

// Package errors provides errors reported to the user. These are mapped to a
// proto.Error by the API and sent to the user. All errors must implement the
// error interface and return a helpful error message. The message can be terse
// because it will be reported in context. For example, the EntryNotFound
// error message makes sense in response to planning a workflow whose
// transfer tool is not installed at one of its sites.
//
// Every error here is fatal to a planning run: the planner aborts instead of
// returning a partial plan.
package errors

import (
	"fmt"
	"strings"
)

var _ error = ContractViolation{}

// ContractViolation is a caller bug: an API was called with a job class or
// input it does not accept.
type ContractViolation struct {
	Job    string
	Class  string
	Reason string
}

func (e ContractViolation) Error() string {
	return fmt.Sprintf("invalid transfer type (%s,%s): %s", e.Job, e.Class, e.Reason)
}

// --------------------------------------------------------------------------

var _ error = MultipleFiles{}

// MultipleFiles is returned by implementations that move one file per job
// when given more than one file.
type MultipleFiles struct {
	Description string
	Count       int
}

func (e MultipleFiles) Error() string {
	return fmt.Sprintf("%s can handle only one file per transfer job, got %d", e.Description, e.Count)
}

// --------------------------------------------------------------------------

var _ error = EntryNotFound{}

// EntryNotFound is returned when a transformation has no catalog entry at a
// site and no default entry can be synthesized. Hint names the site
// environment variable that a default entry would have needed, if any.
type EntryNotFound struct {
	Name string // ns::name:version
	Site string
	Job  string
	Hint string
}

func (e EntryNotFound) Error() string {
	msg := fmt.Sprintf("Could not find entry in tc for lfn %s at site %s", e.Name, e.Site)
	if e.Job != "" {
		msg += " for job " + e.Job
	}
	if e.Hint != "" {
		msg += fmt.Sprintf(" (no default entry: %s not set for site %s in the site catalog)", e.Hint, e.Site)
	}
	return msg
}

// --------------------------------------------------------------------------

var _ error = ManifestWrite{}

// ManifestWrite is an I/O or encoding error while writing a transfer job's
// manifest (stdin) file.
type ManifestWrite struct {
	Job   string
	Files []string // LFNs being written
	Err   error
}

func (e ManifestWrite) Error() string {
	return fmt.Sprintf("unable to write the stdin file for job %s (files %s): %s",
		e.Job, strings.Join(e.Files, ", "), e.Err)
}

// --------------------------------------------------------------------------

var _ error = MalformedURL{}

type MalformedURL struct {
	URL string
	Err error
}

func (e MalformedURL) Error() string {
	return fmt.Sprintf("malformed url %q: %s", e.URL, e.Err)
}

// --------------------------------------------------------------------------

var _ error = UnknownImplementation{}

// UnknownImplementation is a configuration error: a transfer implementation
// name that is not registered.
type UnknownImplementation struct {
	Slot string
	Name string
}

func (e UnknownImplementation) Error() string {
	return fmt.Sprintf("unknown transfer implementation %q for %s transfers", e.Name, e.Slot)
}

// --------------------------------------------------------------------------

var _ error = SiteNotFound{}

type SiteNotFound struct {
	Site string
}

func (e SiteNotFound) Error() string {
	return fmt.Sprintf("site %s not found in site catalog", e.Site)
}

// --------------------------------------------------------------------------

var _ error = InvalidWorkflow{}

type InvalidWorkflow struct {
	Message string
}

func (e InvalidWorkflow) Error() string {
	return "invalid workflow: " + e.Message
}
