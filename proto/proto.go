// Copyright 2017-2020, Square, Inc.

// Package proto provides API message structures and the records of transfer
// manifests. It is the wire format: field names and json tags must not change.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/square/xferplan/job"
)

// Workflow is an abstract workflow to plan: compute jobs, the files they use,
// and the order they run in.
type Workflow struct {
	Name       string        `json:"name" yaml:"name"`
	OutputSite string        `json:"outputSite,omitempty" yaml:"output_site"` // where outputs without destinations go
	Jobs       []WorkflowJob `json:"jobs" yaml:"jobs"`
}

// WorkflowJob is one compute job in a Workflow.
type WorkflowJob struct {
	Name           string                       `json:"name" yaml:"name"`
	Site           string                       `json:"site" yaml:"site"`
	Namespace      string                       `json:"namespace,omitempty" yaml:"namespace"`
	Transformation string                       `json:"transformation" yaml:"transformation"`
	Version        string                       `json:"version,omitempty" yaml:"version"`
	Args           string                       `json:"args,omitempty" yaml:"args"`
	Profiles       map[string]map[string]string `json:"profiles,omitempty" yaml:"profiles"` // namespace => key => value
	Uses           []FileUse                    `json:"uses,omitempty" yaml:"uses"`
	Parents        []string                     `json:"parents,omitempty" yaml:"parents"`
}

const (
	LINK_INPUT  = "input"
	LINK_OUTPUT = "output"
)

// FileUse is a file a job reads (link input) or writes (link output).
// An input with sources is staged in; an input without sources must be the
// output of a parent job. An output with destinations is staged out.
type FileUse struct {
	LFN          string    `json:"lfn" yaml:"lfn"`
	Link         string    `json:"link" yaml:"link"` // LINK_ const
	Executable   bool      `json:"executable,omitempty" yaml:"executable"`
	Symlink      bool      `json:"symlink,omitempty" yaml:"symlink"` // stage in as a symlink
	Sources      []job.URL `json:"sources,omitempty" yaml:"sources"`
	Destinations []job.URL `json:"destinations,omitempty" yaml:"destinations"`
}

// PlanRequest is the body of POST /api/v1/plans.
type PlanRequest struct {
	Workflow Workflow `json:"workflow"`
}

// Plan is a planned workflow: compute jobs plus the transfer and auxiliary
// jobs added to them, and the edges between all jobs.
type Plan struct {
	RunId     string `json:"runId"`
	SubmitDir string `json:"submitDir"`
	Jobs      []Job  `json:"jobs"`  // topological order
	Edges     []Edge `json:"edges"` // sorted by parent, child
}

// Job is one job in a Plan.
type Job struct {
	Name              string                       `json:"name"`
	Id                string                       `json:"id"`
	Class             string                       `json:"class"`
	Transformation    string                       `json:"transformation"` // ns::name:version
	Site              string                       `json:"site"`
	StagingSite       string                       `json:"stagingSite,omitempty"`
	NonThirdPartySite string                       `json:"nonThirdPartySite,omitempty"`
	Universe          string                       `json:"universe,omitempty"`
	Executable        string                       `json:"executable,omitempty"`
	Arguments         string                       `json:"arguments,omitempty"`
	Stdin             string                       `json:"stdin,omitempty"`
	Profiles          map[string]map[string]string `json:"profiles,omitempty"`
	Credentials       map[string][]string          `json:"credentials,omitempty"` // site => credential types
	Notifications     []job.Notification           `json:"notifications,omitempty"`
}

type Edge struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Implementations is the response of GET /api/v1/implementations.
type Implementations struct {
	Names []string          `json:"names"`
	Slots map[string]string `json:"slots"` // slot => configured implementation
}

// --------------------------------------------------------------------------
// Transfer manifests
// --------------------------------------------------------------------------

const TRANSFER_RECORD_TYPE = "transfer"

// TransferRecord is one file in a JSON transfer manifest. A manifest is a
// JSON array of records with Id counting from 1.
type TransferRecord struct {
	Type     string      `json:"type"`
	LFN      string      `json:"lfn"`
	Id       int         `json:"id"`
	SrcURLs  []URLRecord `json:"src_urls"`
	DestURLs []URLRecord `json:"dest_urls"`
}

// URLRecord is one source or destination URL of a TransferRecord. Priority is
// copied verbatim from the replica; it must be a JSON number if set.
type URLRecord struct {
	SiteLabel string      `json:"site_label"`
	URL       string      `json:"url"`
	Priority  json.Number `json:"priority,omitempty"`
}

// --------------------------------------------------------------------------

// Error is the standard response for all handled errors. Client errors (HTTP 400
// codes) and internal errors (HTTP 500 codes) are returned as an Error, if handled.
// If not handled (API crash, panic, etc.), the API returns an HTTP 500 code and the
// response data is undefined; the client should print any response data as a string.
type Error struct {
	Message    string `json:"message"`         // human-readable and loggable error message
	RunId      string `json:"runId,omitempty"` // planning run that caused error, if any
	HTTPStatus int    `json:"httpStatus"`      // HTTP status code
}

func NewError(msgFmt string, msgArgs ...interface{}) Error {
	e := Error{}
	if msgFmt != "" {
		e.Message = fmt.Sprintf(msgFmt, msgArgs...)
	}
	return e
}

func (e Error) String() string {
	return e.Message
}

func (e Error) Error() string {
	return e.Message
}
