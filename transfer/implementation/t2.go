// Copyright 2020, Square, Inc.

package implementation

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/job"
)

const (
	T2_TRANSFORMATION_NS      = "pegasus"
	T2_TRANSFORMATION         = "T2"
	T2_TRANSFORMATION_VERSION = ""
	T2_DERIVATION_NS          = "pegasus"
	T2_DERIVATION             = "T2"
	T2_DERIVATION_VERSION     = "1.0"
	T2_EXECUTABLE             = "T2"

	T2_DESCRIPTION = "Pegasus T2"
)

func init() {
	Register("T2", NewT2)
}

// T2 moves many files with parallel processes and streams. Its manifest
// lists, per file, the candidate source URLs followed by the indented
// destination URL.
type T2 struct {
	*Builder
	tool pegasusTool
}

func NewT2(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, T2_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	t := &T2{
		Builder: b,
		tool: pegasusTool{
			ns:         T2_TRANSFORMATION_NS,
			name:       T2_TRANSFORMATION,
			version:    T2_TRANSFORMATION_VERSION,
			executable: T2_EXECUTABLE,
		},
	}
	return NewMultiple(b, t), nil
}

func (t *T2) Description() string {
	return T2_DESCRIPTION
}

func (t *T2) DoesPreserveXBit() bool {
	return false
}

func (t *T2) UseThirdPartyTransferAlways() bool {
	return false
}

func (t *T2) Derivation() (string, string, string) {
	return T2_DERIVATION_NS, T2_DERIVATION, T2_DERIVATION_VERSION
}

func (t *T2) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return t.tool.entry(t.Builder, site)
}

func (t *T2) Arguments(tx *job.Job) (string, []string) {
	args := fmt.Sprintf(" -P %s -p %s", t.props.Processes(), t.props.Streams())
	if t.props.Force() {
		args += " -f"
	}
	return args + " base-uri se-mount-point " + tx.Stdin, nil
}

func (t *T2) WriteManifest(w io.Writer, tx *job.Job, files []*job.FileTransfer, stagingSite string, class job.JobClass) error {
	for _, f := range files {
		if _, err := fmt.Fprintf(w, "#%s\n", f.LFN); err != nil {
			return err
		}
		for _, src := range f.Sources {
			if _, err := fmt.Fprintf(w, "%s\n", src.PFN); err != nil {
				return err
			}
			tx.AddCredential(src.Site, src.PFN)
		}
		dest := f.Dest(true)
		if _, err := fmt.Fprintf(w, "  %s\n", dest.PFN); err != nil {
			return err
		}
		tx.AddCredential(dest.Site, dest.PFN)
	}
	return nil
}

// PostProcess ships the manifest with the job instead of passing it on stdin.
func (t *T2) PostProcess(tx *job.Job) {
	tx.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, filepath.Join(t.submitDir, tx.Stdin))
	tx.Stdin = ""
	tx.Profiles.SetIfAbsent(job.DAGMAN, job.DAGMAN_CATEGORY, category(tx.Class))
}
