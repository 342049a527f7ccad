// Copyright 2020, Square, Inc.

package implementation

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/job"
)

const (
	GUC_TRANSFORMATION_NS      = "globus"
	GUC_TRANSFORMATION         = "guc"
	GUC_TRANSFORMATION_VERSION = ""
	GUC_DERIVATION_NS          = "globus"
	GUC_DERIVATION             = "guc"
	GUC_DERIVATION_VERSION     = ""
	GUC_EXECUTABLE             = "globus-url-copy"

	GUC_DESCRIPTION     = "GridFTP client globus-url-copy"
	TPT_GUC_DESCRIPTION = "GridFTP client globus-url-copy that always uses third party transfers"
)

func init() {
	Register("GUC", NewGUC)
	Register("TPTGUC", NewTPTGUC)
}

// GUC is globus-url-copy reading a list of URL pairs with -f. The manifest
// is shipped to the job by condor.
type GUC struct {
	*Builder
}

func NewGUC(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, GUC_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewMultiple(b, &GUC{Builder: b}), nil
}

func (g *GUC) Description() string {
	return GUC_DESCRIPTION
}

func (g *GUC) DoesPreserveXBit() bool {
	return false
}

func (g *GUC) UseThirdPartyTransferAlways() bool {
	return false
}

func (g *GUC) Derivation() (string, string, string) {
	return GUC_DERIVATION_NS, GUC_DERIVATION, GUC_DERIVATION_VERSION
}

// Entry returns the globus-url-copy entry at site. The default entry is under
// the site's GLOBUS_LOCATION.
func (g *GUC) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return g.LookupOrDefault(GUC_TRANSFORMATION_NS, GUC_TRANSFORMATION, GUC_TRANSFORMATION_VERSION, site,
		func() (*catalog.TransformationEntry, error) {
			loc := g.sites.EnvironmentVariable(site, job.ENV_GLOBUS_LOCATION)
			return g.DefaultEntry(GUC_TRANSFORMATION_NS, GUC_TRANSFORMATION, GUC_TRANSFORMATION_VERSION,
				GUC_EXECUTABLE, site, loc, job.ENV_GLOBUS_LOCATION, g.environment(site, loc))
		})
}

func (g *GUC) environment(site, loc string) job.Profiles {
	env := job.Profiles{}
	env.Set(job.ENV, job.ENV_GLOBUS_LOCATION, loc)
	lib := g.sites.EnvironmentVariable(site, job.ENV_LD_LIBRARY_PATH)
	if lib == "" {
		lib = strings.TrimSuffix(loc, "/") + "/lib"
	}
	env.Set(job.ENV, job.ENV_LD_LIBRARY_PATH, lib)
	return env
}

// Arguments returns the transfer.arguments profile, or the number of parallel
// streams, followed by the manifest.
func (g *GUC) Arguments(tx *job.Job) (string, []string) {
	tp, err := decodeTransferProfile(tx.Profiles)
	if err != nil {
		g.logger.Errorf("Invalid pegasus profile for job %s: %s", tx.Name, err)
	}
	var args string
	var claimed []string
	if tp.Arguments != "" {
		args = tp.Arguments
		claimed = []string{job.PEGASUS_TRANSFER_ARGUMENTS}
	} else {
		args = " -p " + g.props.Streams()
	}
	return args + " -cd -vb -f " + tx.Stdin, claimed
}

func (g *GUC) WriteManifest(w io.Writer, tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error {
	for _, f := range files {
		src := f.Source()
		dest := f.Dest(true)
		if _, err := fmt.Fprintf(w, "#%s %s\n%s %s\n", src.Site, dest.Site, src.PFN, dest.PFN); err != nil {
			return err
		}
		tx.AddCredential(src.Site, src.PFN)
		tx.AddCredential(dest.Site, dest.PFN)
	}
	return nil
}

// PostProcess ships the manifest with the job instead of passing it on stdin.
func (g *GUC) PostProcess(tx *job.Job) {
	tx.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, filepath.Join(g.submitDir, tx.Stdin))
	tx.Stdin = ""
}

// --------------------------------------------------------------------------

// TPTGUC is GUC, always run as a third party transfer from the submit host.
type TPTGUC struct {
	*GUC
}

func NewTPTGUC(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, TPT_GUC_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewMultiple(b, &TPTGUC{GUC: &GUC{Builder: b}}), nil
}

func (g *TPTGUC) Description() string {
	return TPT_GUC_DESCRIPTION
}

func (g *TPTGUC) UseThirdPartyTransferAlways() bool {
	return true
}
