// Copyright 2020, Square, Inc.

package implementation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
	"github.com/square/xferplan/credential"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

const (
	XBIT_TRANSFORMATION_NS      = "system"
	XBIT_TRANSFORMATION         = "chmod"
	XBIT_TRANSFORMATION_VERSION = ""
	XBIT_DERIVATION_NS          = "system"
	XBIT_DERIVATION_VERSION     = ""
	XBIT_DEFAULT_PATH           = "/bin/chmod"

	SET_XBIT_PREFIX = "chmod_"
	NOOP_PREFIX     = "noop_"

	NOOP_NAMESPACE  = "pegasus"
	NOOP_NAME       = "noop"
	NOOP_VERSION    = "1.0"
	NOOP_EXECUTABLE = "/bin/true"

	GRIDSTART_NONE = "None"

	STYLE_CONDOR  = "condor"
	STYLE_GLIDEIN = "glidein"
)

// A Bag is everything an Implementation is built from.
type Bag struct {
	Properties config.Properties
	Sites      catalog.SiteStore
	TC         catalog.TransformationCatalog
	Refiner    Refiner

	// Policy is the chmod-disabled site policy. If nil, it is parsed from
	// Properties.ChmodDisabledSites.
	Policy *DisabledSitePolicy

	// Directory where manifests are written.
	SubmitDir string

	// Log is the base log entry, usually with the planning run id. If nil,
	// the standard logger is used.
	Log *log.Entry
}

// A Builder holds what every transfer implementation needs to build jobs:
// catalogs, properties, the refiner, and the chmod-disabled site policy.
type Builder struct {
	props     config.Properties
	sites     catalog.SiteStore
	tc        catalog.TransformationCatalog
	refiner   Refiner
	policy    DisabledSitePolicy
	creds     credential.Files // only files that exist
	submitDir string
	logger    *log.Entry

	xbits map[string]int // compute job => chmod/noop jobs added
}

// NewBuilder returns a Builder for the implementation described by desc.
func NewBuilder(bag *Bag, desc string) (*Builder, error) {
	if bag == nil {
		return nil, fmt.Errorf("nil bag")
	}
	if bag.Sites == nil || bag.TC == nil {
		return nil, fmt.Errorf("site store and transformation catalog are required")
	}
	logger := bag.Log
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithFields(log.Fields{"impl": desc})

	policy := ParseDisabledSites(bag.Properties.ChmodDisabledSites())
	if bag.Policy != nil {
		policy = *bag.Policy
	}

	creds := bag.Properties.Credentials().Existing(func(kind, path string) {
		logger.Debugf("The %s credential file does not exist - %s", kind, path)
	})

	submitDir := bag.SubmitDir
	if submitDir == "" {
		submitDir = "."
	}

	return &Builder{
		props:     bag.Properties,
		sites:     bag.Sites,
		tc:        bag.TC,
		refiner:   bag.Refiner,
		policy:    policy,
		creds:     creds,
		submitDir: submitDir,
		logger:    logger,
		xbits:     map[string]int{},
	}, nil
}

func (b *Builder) SetRefiner(r Refiner) {
	b.refiner = r
}

// ApplyPriority sets the scheduler priority of tx from the priority
// configured for its class. Nothing is set if none is configured.
func (b *Builder) ApplyPriority(tx *job.Job) {
	if p := b.props.Priority(tx.Class); p != "" {
		tx.Profiles.Set(job.CONDOR, job.CONDOR_PRIORITY, p)
	}
}

func (b *Builder) SetXBitJobName(name string, index int) string {
	return fmt.Sprintf("%s%s_%d", SET_XBIT_PREFIX, name, index)
}

func (b *Builder) NoOPJobName(name string, index int) string {
	return fmt.Sprintf("%s%s_%d", NOOP_PREFIX, name, index)
}

func (b *Builder) AddSetXBitJobs(compute *job.Job, txName string, execFiles []*job.FileTransfer, class job.JobClass) (bool, error) {
	if len(execFiles) == 0 {
		return false, nil
	}
	if class != job.EJobClass.StageIn() {
		return false, xbitContractViolation(txName, class)
	}

	noop := b.policy.Disabled(compute.Site)
	for _, f := range execFiles {
		// Indexes run on across calls: a compute job can have several
		// stage-in jobs with executables.
		i := b.xbits[compute.Name]
		b.xbits[compute.Name]++
		var x *job.Job
		if noop {
			x = b.CreateNoOPJob(b.NoOPJobName(compute.Name, i), compute.Site)
		} else {
			var err error
			x, err = b.createSetXBitJob([]*job.FileTransfer{f}, b.SetXBitJobName(compute.Name, i), f.Dest(true).Site)
			if err != nil {
				return false, errors.Wrapf(err, "Unable to create setXBitJob corresponding to compute job %s and transfer job %s",
					compute.Name, txName)
			}
		}
		if err := b.addXBitJob(x, txName, compute.Name); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (b *Builder) AddSetXBitJobsAt(compute *job.Job, txName string, execFiles []*job.FileTransfer, class job.JobClass, index int) (bool, error) {
	if len(execFiles) == 0 {
		return false, nil
	}
	if class != job.EJobClass.StageIn() {
		return false, xbitContractViolation(txName, class)
	}
	x, err := b.CreateSetXBitJob(compute, execFiles, class, index)
	if err != nil {
		return false, errors.Wrapf(err, "Unable to create setXBitJob corresponding to compute job %s and transfer job %s",
			compute.Name, txName)
	}
	// Later AddSetXBitJobs calls for compute continue after index.
	if b.xbits[compute.Name] <= index {
		b.xbits[compute.Name] = index + 1
	}
	if err := b.addXBitJob(x, txName, compute.Name); err != nil {
		return false, err
	}
	return true, nil
}

func (b *Builder) CreateSetXBitJob(compute *job.Job, execFiles []*job.FileTransfer, class job.JobClass, index int) (*job.Job, error) {
	if class != job.EJobClass.StageIn() {
		return nil, xbitContractViolation(compute.Name, class)
	}
	if b.policy.Disabled(compute.Site) {
		return b.CreateNoOPJob(b.NoOPJobName(compute.Name, index), compute.Site), nil
	}
	return b.createSetXBitJob(execFiles, b.SetXBitJobName(compute.Name, index), compute.Site)
}

// CreateNoOPJob returns a job that does nothing and always succeeds. It runs
// on the submit host; its staging site is the compute site so that cleanup
// ordering treats it like the chmod job it replaces.
func (b *Builder) CreateNoOPJob(name, computeSite string) *job.Job {
	x := &job.Job{
		Name:        name,
		ID:          name,
		Universe:    job.UNIVERSE_AUXILLARY,
		Executable:  NOOP_EXECUTABLE,
		Site:        job.SITE_LOCAL,
		StagingSite: computeSite,
		Class:       job.EJobClass.Chmod(),
	}
	x.SetTransformation(NOOP_NAMESPACE, NOOP_NAME, NOOP_VERSION)
	x.SetDerivation(NOOP_NAMESPACE, NOOP_NAME, NOOP_VERSION)
	x.Profiles.Set(job.DAGMAN, job.DAGMAN_NOOP, "true")
	x.Profiles.SetIfAbsent(job.CONDOR, job.CONDOR_NOOP_JOB, "true")
	x.Profiles.SetIfAbsent(job.CONDOR, job.CONDOR_NOOP_JOB_EXIT_CODE, "0")
	x.Profiles.SetIfAbsent(job.PEGASUS, job.PEGASUS_GRIDSTART, GRIDSTART_NONE)
	return x
}

// createSetXBitJob returns a job at site that runs chmod +x on the
// destination paths of files.
func (b *Builder) createSetXBitJob(files []*job.FileTransfer, name, site string) (*job.Job, error) {
	entries, err := b.tc.Lookup(XBIT_TRANSFORMATION_NS, XBIT_TRANSFORMATION, XBIT_TRANSFORMATION_VERSION,
		site, catalog.INSTALLED)
	if err != nil {
		b.logger.Errorf("Unable to retrieve entries from TC: %s", err)
		return nil, serr.EntryNotFound{Name: xbitName(), Site: site, Job: name}
	}
	var entry *catalog.TransformationEntry
	if len(entries) > 0 {
		entry = entries[0]
	} else {
		entry, err = b.defaultXBitEntry(site)
		if err != nil {
			return nil, err
		}
	}

	siteEntry, ok := b.sites.Lookup(site)
	if !ok {
		return nil, serr.SiteNotFound{Site: site}
	}

	args := " +x "
	for _, f := range files {
		p, err := f.Dest(true).Path()
		if err != nil {
			return nil, err
		}
		args += " " + p
	}

	x := &job.Job{
		Name:        name,
		ID:          name,
		Universe:    job.UNIVERSE_AUXILLARY,
		Executable:  entry.PhysicalPath,
		Arguments:   args,
		Site:        site,
		StagingSite: site,
		Class:       job.EJobClass.Chmod(),
	}
	x.SetTransformation(XBIT_TRANSFORMATION_NS, XBIT_TRANSFORMATION, XBIT_TRANSFORMATION_VERSION)
	x.SetDerivation(XBIT_DERIVATION_NS, XBIT_TRANSFORMATION, XBIT_DERIVATION_VERSION)
	x.Profiles.Update(siteEntry.Profiles)
	x.Profiles.Update(entry.Profiles)
	x.Profiles.Update(b.props.Profiles())
	return x, nil
}

// defaultXBitEntry returns an entry for /bin/chmod at site and registers it
// in the catalog.
func (b *Builder) defaultXBitEntry(site string) (*catalog.TransformationEntry, error) {
	s, ok := b.sites.Lookup(site)
	if !ok {
		return nil, serr.EntryNotFound{Name: xbitName(), Site: site}
	}
	e := &catalog.TransformationEntry{
		Namespace:    XBIT_TRANSFORMATION_NS,
		Name:         XBIT_TRANSFORMATION,
		Version:      XBIT_TRANSFORMATION_VERSION,
		Site:         site,
		PhysicalPath: XBIT_DEFAULT_PATH,
		Type:         catalog.INSTALLED,
		SysInfo:      s.SysInfo,
	}
	b.register(e)
	return e, nil
}

// addXBitJob adds x to the graph between the transfer job and the compute job.
func (b *Builder) addXBitJob(x *job.Job, txName, computeName string) error {
	if b.refiner == nil {
		return fmt.Errorf("no refiner set")
	}
	if err := b.refiner.AddJob(x); err != nil {
		return err
	}
	if err := b.refiner.AddTransferRelation(txName, x.Name, x.Site, true); err != nil {
		return err
	}
	return b.refiner.AddRelation(x.Name, computeName)
}

// LookupOrDefault returns the first catalog entry of ns::name:version at site,
// or the entry returned by def if the catalog has none. A catalog error is
// logged and treated as no entry.
func (b *Builder) LookupOrDefault(ns, name, version, site string,
	def func() (*catalog.TransformationEntry, error)) (*catalog.TransformationEntry, error) {
	entries, err := b.tc.Lookup(ns, name, version, site, catalog.INSTALLED)
	if err != nil {
		b.logger.Debugf("Unable to retrieve entry from TC for %s Cause: %s", job.CompleteName(ns, name, version), err)
	}
	if len(entries) > 0 {
		return entries[0], nil
	}
	return def()
}

// DefaultEntry synthesizes and registers an entry for a tool installed at
// <root>/bin/<basename> at site. root is the value of the site environment
// variable hint; if it is empty, no default can be made and EntryNotFound
// names both the entry and the hint. env is attached to the entry.
func (b *Builder) DefaultEntry(ns, name, version, basename, site, root, hint string, env job.Profiles) (*catalog.TransformationEntry, error) {
	complete := job.CompleteName(ns, name, version)
	b.logger.Debugf("Creating a default TC entry for %s at site %s", complete, site)
	if root == "" {
		b.logger.Debugf("Unable to create a default entry for %s as %s is not set in Site Catalog", complete, hint)
		return nil, serr.EntryNotFound{Name: complete, Site: site, Hint: hint}
	}
	s, ok := b.sites.Lookup(site)
	if !ok {
		return nil, serr.EntryNotFound{Name: complete, Site: site}
	}
	e := &catalog.TransformationEntry{
		Namespace:    ns,
		Name:         name,
		Version:      version,
		Site:         site,
		PhysicalPath: strings.TrimSuffix(root, "/") + "/bin/" + basename,
		Type:         catalog.INSTALLED,
		SysInfo:      s.SysInfo,
		Profiles:     env,
	}
	b.register(e)
	b.logger.Debugf("Created entry with path %s", e.PhysicalPath)
	return e, nil
}

// register inserts a default entry in the catalog. It is best-effort: an
// existing entry or a catalog error is only logged.
func (b *Builder) register(e *catalog.TransformationEntry) {
	if err := b.tc.Insert(e, false); err != nil {
		b.logger.Debugf("Unable to register in the TC the default entry %s for site %s: %s",
			e.CompleteName(), e.Site, err)
	}
}

// CheckAndTransferProxy ships the local user proxy with tx if tx asks for it
// (pegasus transfer.proxy), runs in a condor or glidein style pool, or runs
// on the submit host in the vanilla universe. It returns true if the proxy
// was added.
func (b *Builder) CheckAndTransferProxy(tx *job.Job) bool {
	if b.creds.Proxy == "" {
		return false
	}
	tp, err := decodeTransferProfile(tx.Profiles)
	if err != nil {
		b.logger.Errorf("Invalid pegasus profile for transfer job %s: %s", tx.Name, err)
	}
	universe, _ := tx.Profiles.Get(job.CONDOR, job.CONDOR_UNIVERSE)
	byStyle := strings.EqualFold(tp.Style, STYLE_CONDOR) || strings.EqualFold(tp.Style, STYLE_GLIDEIN) ||
		(tx.RunsLocally() && strings.EqualFold(universe, job.UNIVERSE_VANILLA))
	if !tp.Proxy && !byStyle {
		return false
	}

	tx.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, b.creds.Proxy)
	if tx.RunsLocally() {
		tx.Profiles.SetIfAbsent(job.ENV, job.ENV_X509_USER_PROXY, b.creds.Proxy)
	} else {
		tx.Profiles.SetIfAbsent(job.ENV, job.ENV_X509_USER_PROXY, credential.Basename(b.creds.Proxy))
	}
	if !tp.Proxy {
		tx.Profiles.SetIfAbsent(job.PEGASUS, job.PEGASUS_TRANSFER_PROXY, "true")
	}
	tx.Profiles.Delete(job.CONDOR, job.CONDOR_REMOTE_INITIALDIR)
	return true
}

// CheckAndTransferIrodsEnvFile ships the local irods environment file with
// tx if tx runs on a remote site and does not set one already.
func (b *Builder) CheckAndTransferIrodsEnvFile(tx *job.Job) bool {
	if tx.RunsLocally() || b.creds.IrodsEnv == "" || tx.Profiles.Has(job.ENV, job.ENV_IRODS_ENV_FILE) {
		return false
	}
	tx.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, b.creds.IrodsEnv)
	tx.Profiles.Set(job.ENV, job.ENV_IRODS_ENV_FILE, credential.Basename(b.creds.IrodsEnv))
	return true
}

// CheckAndTransferS3cfg ships the local s3cfg file with tx if tx runs on a
// remote site and does not set one already.
func (b *Builder) CheckAndTransferS3cfg(tx *job.Job) bool {
	if tx.RunsLocally() || b.creds.S3cfg == "" || tx.Profiles.Has(job.ENV, job.ENV_S3CFG) {
		return false
	}
	tx.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, b.creds.S3cfg)
	tx.Profiles.Set(job.ENV, job.ENV_S3CFG, credential.Basename(b.creds.S3cfg))
	return true
}

// --------------------------------------------------------------------------

// newTransferJob returns the common skeleton of a transfer job for compute.
// The non-third-party site is the compute job's staging site, except for
// inter-site transfers where it is the source site of the first file.
func (b *Builder) newTransferJob(compute *job.Job, site, name string, class job.JobClass, files []*job.FileTransfer) *job.Job {
	staging := stagingSite(compute)
	tx := &job.Job{
		Name:              name,
		ID:                compute.Name,
		Universe:          job.UNIVERSE_TRANSFER,
		Site:              site,
		StagingSite:       staging,
		NonThirdPartySite: staging,
		OutputFiles:       files,
		Class:             class,
	}
	if class == job.EJobClass.InterPool() && len(files) > 0 {
		tx.NonThirdPartySite = files[0].Source().Site
	}
	return tx
}

// applyEntry sets the transformation and executable of tx from e, and
// merges profiles: site catalog, then transformation catalog, then
// properties. Later sources win.
func (b *Builder) applyEntry(tx *job.Job, e *catalog.TransformationEntry, dvNS, dvName, dvVersion string) error {
	s, ok := b.sites.Lookup(tx.Site)
	if !ok {
		return serr.SiteNotFound{Site: tx.Site}
	}
	tx.SetTransformation(e.Namespace, e.Name, e.Version)
	tx.SetDerivation(dvNS, dvName, dvVersion)
	tx.Executable = e.PhysicalPath
	tx.Profiles.Update(s.Profiles)
	tx.AddNotifications(e.Notifications)
	tx.Profiles.Update(e.Profiles)
	tx.Profiles.Update(b.props.Profiles())
	return nil
}

func stagingSite(j *job.Job) string {
	if j.StagingSite != "" {
		return j.StagingSite
	}
	return j.Site
}

func xbitName() string {
	return job.CompleteName(XBIT_TRANSFORMATION_NS, XBIT_TRANSFORMATION, XBIT_TRANSFORMATION_VERSION)
}

func xbitContractViolation(name string, class job.JobClass) error {
	return serr.ContractViolation{
		Job:    name,
		Class:  class.String(),
		Reason: "only stage-in jobs can stage executable files",
	}
}
