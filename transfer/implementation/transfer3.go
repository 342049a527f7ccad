// Copyright 2020, Square, Inc.

package implementation

import (
	"fmt"
	"io"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/job"
)

const (
	TRANSFER3_TRANSFORMATION_NS      = "pegasus"
	TRANSFER3_TRANSFORMATION         = "transfer3"
	TRANSFER3_TRANSFORMATION_VERSION = ""
	TRANSFER3_DERIVATION_NS          = "pegasus"
	TRANSFER3_DERIVATION             = "transfer3"
	TRANSFER3_DERIVATION_VERSION     = "1.0"
	TRANSFER3_EXECUTABLE             = "pegasus-transfer"

	TRANSFER3_DESCRIPTION = "Python based Transfer Script (plain manifest)"
)

func init() {
	Register("Transfer3", NewTransfer3)
}

// Transfer3 is pegasus-transfer reading the plain pair manifest: one source
// and one destination URL per file, each preceded by a #site line.
type Transfer3 struct {
	*Builder
	tool pegasusTool
}

func NewTransfer3(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, TRANSFER3_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	t := &Transfer3{
		Builder: b,
		tool: pegasusTool{
			ns:         TRANSFER3_TRANSFORMATION_NS,
			name:       TRANSFER3_TRANSFORMATION,
			version:    TRANSFER3_TRANSFORMATION_VERSION,
			executable: TRANSFER3_EXECUTABLE,
		},
	}
	return NewMultiple(b, t), nil
}

func (t *Transfer3) Description() string {
	return TRANSFER3_DESCRIPTION
}

func (t *Transfer3) DoesPreserveXBit() bool {
	return false
}

func (t *Transfer3) UseThirdPartyTransferAlways() bool {
	return false
}

func (t *Transfer3) Derivation() (string, string, string) {
	return TRANSFER3_DERIVATION_NS, TRANSFER3_DERIVATION, TRANSFER3_DERIVATION_VERSION
}

func (t *Transfer3) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return t.tool.entry(t.Builder, site)
}

func (t *Transfer3) Arguments(tx *job.Job) (string, []string) {
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

func (t *Transfer3) WriteManifest(w io.Writer, tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error {
	for _, f := range files {
		src := f.Source()
		dest := f.Dest(true)
		if _, err := fmt.Fprintf(w, "#%s\n%s\n#%s\n%s\n", src.Site, src.PFN, dest.Site, dest.PFN); err != nil {
			return err
		}
		tx.AddCredential(src.Site, src.PFN)
		tx.AddCredential(dest.Site, dest.PFN)
	}
	return nil
}

func (t *Transfer3) PostProcess(tx *job.Job) {
	tx.Profiles.SetIfAbsent(job.DAGMAN, job.DAGMAN_CATEGORY, category(tx.Class))
}
