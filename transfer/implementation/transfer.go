// Copyright 2020, Square, Inc.

package implementation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/proto"
)

const (
	TRANSFER_TRANSFORMATION_NS      = "pegasus"
	TRANSFER_TRANSFORMATION         = "transfer"
	TRANSFER_TRANSFORMATION_VERSION = ""
	TRANSFER_DERIVATION_NS          = "pegasus"
	TRANSFER_DERIVATION             = "transfer"
	TRANSFER_DERIVATION_VERSION     = "1.0"
	TRANSFER_EXECUTABLE             = "pegasus-transfer"

	TRANSFER_DESCRIPTION     = "Python based Transfer Script"
	TPT_TRANSFER_DESCRIPTION = "Python based Transfer Script that always uses third party transfers"

	DEFAULT_NUMBER_OF_THREADS = 2
)

// Categories that dagman throttles transfer jobs by.
const (
	CATEGORY_STAGE_IN    = "stage-in"
	CATEGORY_STAGE_OUT   = "stage-out"
	CATEGORY_STAGE_INTER = "stage-inter"
	CATEGORY_TRANSFER    = "transfer"
)

func init() {
	Register("Transfer", NewTransfer)
	Register("TPTTransfer", NewTPTTransfer)
}

// pegasusTool is a tool installed with the planner tools, whose default
// location at a site is <PEGASUS_HOME>/bin/<executable>.
type pegasusTool struct {
	ns, name, version string
	executable        string
}

func (t pegasusTool) entry(b *Builder, site string) (*catalog.TransformationEntry, error) {
	return b.LookupOrDefault(t.ns, t.name, t.version, site, func() (*catalog.TransformationEntry, error) {
		return t.defaultEntry(b, site)
	})
}

func (t pegasusTool) defaultEntry(b *Builder, site string) (*catalog.TransformationEntry, error) {
	home := b.sites.PegasusHome(site)
	return b.DefaultEntry(t.ns, t.name, t.version, t.executable, site, home, job.ENV_PEGASUS_HOME,
		pegasusEnvironment(b.sites, site, home))
}

// pegasusEnvironment returns the env profiles a planner tool needs at site.
func pegasusEnvironment(sites catalog.SiteStore, site, home string) job.Profiles {
	env := job.Profiles{}
	env.Set(job.ENV, job.ENV_PEGASUS_HOME, home)
	if loc := sites.EnvironmentVariable(site, job.ENV_GLOBUS_LOCATION); len(loc) > 1 {
		env.Set(job.ENV, job.ENV_GLOBUS_LOCATION, loc)
	}
	return env
}

// threadsArgument returns the --threads argument from the transfer.threads
// profile of tx.
func threadsArgument(b *Builder, tx *job.Job, tp transferProfile) string {
	threads := DEFAULT_NUMBER_OF_THREADS
	if tp.Threads != "" {
		n, err := strconv.Atoi(tp.Threads)
		if err != nil || n < 1 {
			b.logger.Errorf("Invalid value %q for profile %s for job %s. Using default %d",
				tp.Threads, job.PEGASUS_TRANSFER_THREADS, tx.Name, DEFAULT_NUMBER_OF_THREADS)
		} else {
			threads = n
		}
	}
	return fmt.Sprintf(" --threads %d ", threads)
}

func category(c job.JobClass) string {
	switch c {
	case job.EJobClass.StageIn(), job.EJobClass.StageInWorkerPackage(), job.EJobClass.SymlinkStageIn():
		return CATEGORY_STAGE_IN
	case job.EJobClass.StageOut():
		return CATEGORY_STAGE_OUT
	case job.EJobClass.InterPool():
		return CATEGORY_STAGE_INTER
	}
	return CATEGORY_TRANSFER
}

// --------------------------------------------------------------------------

// Transfer is pegasus-transfer: many files per job, described by a JSON
// manifest that lists every source replica of a file.
type Transfer struct {
	*Builder
	tool pegasusTool
}

func NewTransfer(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, TRANSFER_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewMultiple(b, newTransfer(b)), nil
}

func newTransfer(b *Builder) *Transfer {
	return &Transfer{
		Builder: b,
		tool: pegasusTool{
			ns:         TRANSFER_TRANSFORMATION_NS,
			name:       TRANSFER_TRANSFORMATION,
			version:    TRANSFER_TRANSFORMATION_VERSION,
			executable: TRANSFER_EXECUTABLE,
		},
	}
}

func (t *Transfer) Description() string {
	return TRANSFER_DESCRIPTION
}

func (t *Transfer) DoesPreserveXBit() bool {
	return false
}

func (t *Transfer) UseThirdPartyTransferAlways() bool {
	return false
}

func (t *Transfer) Derivation() (string, string, string) {
	return TRANSFER_DERIVATION_NS, TRANSFER_DERIVATION, TRANSFER_DERIVATION_VERSION
}

// Entry returns the pegasus-transfer entry at site. A worker package staged
// to a remote site is moved by the submit host install, so the local default
// entry is used.
func (t *Transfer) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	if class == job.EJobClass.StageInWorkerPackage() && site != job.SITE_LOCAL {
		return t.tool.defaultEntry(t.Builder, job.SITE_LOCAL)
	}
	return t.tool.entry(t.Builder, site)
}

func (t *Transfer) Arguments(tx *job.Job) (string, []string) {
	tp, err := decodeTransferProfile(tx.Profiles)
	if err != nil {
		t.logger.Errorf("Invalid pegasus profile for job %s: %s", tx.Name, err)
	}
	args := threadsArgument(t.Builder, tx, tp)
	if tp.Arguments == "" {
		return args, nil
	}
	return args + tp.Arguments, []string{job.PEGASUS_TRANSFER_ARGUMENTS}
}

// WriteManifest writes a JSON array with one record per file. All source
// replicas are listed, grouped by site in order of first appearance.
func (t *Transfer) WriteManifest(w io.Writer, tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error {
	records := make([]proto.TransferRecord, 0, len(files))
	for i, f := range files {
		r := proto.TransferRecord{
			Type:     proto.TRANSFER_RECORD_TYPE,
			LFN:      f.LFN,
			Id:       i + 1,
			SrcURLs:  []proto.URLRecord{},
			DestURLs: []proto.URLRecord{},
		}
		for _, site := range f.SourceSites() {
			for _, u := range f.SourceURLs(site) {
				r.SrcURLs = append(r.SrcURLs, proto.URLRecord{
					SiteLabel: site,
					URL:       u.PFN,
					Priority:  json.Number(u.Priority),
				})
				tx.AddCredential(site, u.PFN)
			}
		}
		dest := f.Dest(true)
		r.DestURLs = append(r.DestURLs, proto.URLRecord{
			SiteLabel: dest.Site,
			URL:       dest.PFN,
		})
		tx.AddCredential(dest.Site, dest.PFN)
		records = append(records, r)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// PostProcess turns a worker package job into a plain stage-in job and sets
// the dagman category.
func (t *Transfer) PostProcess(tx *job.Job) {
	if tx.Class == job.EJobClass.StageInWorkerPackage() {
		tx.Class = job.EJobClass.StageIn()
		if !tx.RunsLocally() {
			// the executable comes from the submit host install
			tx.Profiles.Set(job.CONDOR, job.CONDOR_TRANSFER_EXECUTABLE, "true")
		}
	}
	tx.Profiles.SetIfAbsent(job.DAGMAN, job.DAGMAN_CATEGORY, category(tx.Class))
}

// --------------------------------------------------------------------------

// TPTTransfer is Transfer, always run as a third party transfer from the
// submit host.
type TPTTransfer struct {
	*Transfer
}

func NewTPTTransfer(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, TPT_TRANSFER_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewMultiple(b, &TPTTransfer{Transfer: newTransfer(b)}), nil
}

func (t *TPTTransfer) Description() string {
	return TPT_TRANSFER_DESCRIPTION
}

func (t *TPTTransfer) UseThirdPartyTransferAlways() bool {
	return true
}
