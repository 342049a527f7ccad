// Copyright 2017-2020, Square, Inc.

// Package job provides the planning data model: jobs, job classes, profiles,
// and file transfers. To avoid an import cycle, this package must not import
// other xferplan packages except errors and credential because everything
// else depends on it.
package job

import (
	"github.com/square/xferplan/credential"
)

// Universes understood by the downstream code generator.
const (
	UNIVERSE_VANILLA   = "vanilla"
	UNIVERSE_LOCAL     = "local"
	UNIVERSE_TRANSFER  = "transfer"
	UNIVERSE_AUXILLARY = "auxillary"
)

// SITE_LOCAL is the handle of the submit host.
const SITE_LOCAL = "local"

// A Job is one node in the planned workflow: a compute job from the user's
// workflow or an auxiliary job added by the planner (transfer, chmod, noop).
//
// A Job built by a transfer implementation is a transfer job descriptor:
// Class is a transfer class, ID is the name of the compute job it serves,
// and NonThirdPartySite is the site that cleanup jobs order against.
type Job struct {
	Name string
	ID   string

	// Transformation this job invokes
	Namespace   string
	LogicalName string
	Version     string

	// Derivation (recipe) this job instantiates
	DVNamespace string
	DVName      string
	DVVersion   string

	Site              string // execution site
	StagingSite       string
	NonThirdPartySite string

	Universe   string
	Executable string
	Arguments  string
	Stdin      string // manifest basename, relative to the submit dir
	Stdout     string
	Stderr     string

	InputFiles  []*FileTransfer
	OutputFiles []*FileTransfer

	Class         JobClass
	Profiles      Profiles
	Credentials   map[string][]credential.Type // site => credential types
	Notifications []Notification
}

// A Notification is a command the scheduler runs on a job event.
type Notification struct {
	When    string `json:"when" yaml:"when"`
	Command string `json:"command" yaml:"command"`
}

// CompleteTCName returns the job's transformation name, ns::name:version.
func (j *Job) CompleteTCName() string {
	return CompleteName(j.Namespace, j.LogicalName, j.Version)
}

// SetTransformation sets the transformation triple.
func (j *Job) SetTransformation(ns, name, version string) {
	j.Namespace = ns
	j.LogicalName = name
	j.Version = version
}

// SetDerivation sets the derivation triple.
func (j *Job) SetDerivation(ns, name, version string) {
	j.DVNamespace = ns
	j.DVName = name
	j.DVVersion = version
}

// AddCredential records the credential needed to access url from site.
// URLs that need no credential are ignored, and each type is recorded once
// per site.
func (j *Job) AddCredential(site, url string) {
	t := credential.ForURL(url)
	if t == credential.EType.None() {
		return
	}
	if j.Credentials == nil {
		j.Credentials = map[string][]credential.Type{}
	}
	for _, have := range j.Credentials[site] {
		if have == t {
			return
		}
	}
	j.Credentials[site] = append(j.Credentials[site], t)
}

// AddNotifications appends notifications, skipping exact duplicates.
func (j *Job) AddNotifications(n []Notification) {
NEXT:
	for _, add := range n {
		for _, have := range j.Notifications {
			if have == add {
				continue NEXT
			}
		}
		j.Notifications = append(j.Notifications, add)
	}
}

// RunsLocally returns true if the job executes on the submit host.
func (j *Job) RunsLocally() bool {
	return j.Site == SITE_LOCAL
}

// CompleteName combines a namespace, name, and version as ns::name:version.
// An empty namespace or version is left out together with its separator.
func CompleteName(ns, name, version string) string {
	s := name
	if ns != "" {
		s = ns + "::" + s
	}
	if version != "" {
		s = s + ":" + version
	}
	return s
}
