// Copyright 2020, Square, Inc.

package implementation

import (
	"github.com/square/xferplan/catalog"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

const (
	STORK_TRANSFORMATION_NS      = "stork"
	STORK_TRANSFORMATION         = "transfer"
	STORK_TRANSFORMATION_VERSION = ""
	STORK_DERIVATION_NS          = "stork"
	STORK_DERIVATION             = "transfer"
	STORK_DERIVATION_VERSION     = ""

	STORK_DESCRIPTION = "Stork Data Placement Scheduler"
)

func init() {
	Register("Stork", NewStork)
}

// Stork submits each transfer to the Stork data placement scheduler, which
// accepts one source and destination pair per request.
type Stork struct {
	*Builder
}

func NewStork(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, STORK_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewSingle(b, &Stork{Builder: b}), nil
}

func (s *Stork) Description() string {
	return STORK_DESCRIPTION
}

func (s *Stork) DoesPreserveXBit() bool {
	return false
}

func (s *Stork) UseThirdPartyTransferAlways() bool {
	return false
}

func (s *Stork) Derivation() (string, string, string) {
	return STORK_DERIVATION_NS, STORK_DERIVATION, STORK_DERIVATION_VERSION
}

// Entry returns the stork entry at site. Stork has no default location.
func (s *Stork) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return s.LookupOrDefault(STORK_TRANSFORMATION_NS, STORK_TRANSFORMATION, STORK_TRANSFORMATION_VERSION, site,
		func() (*catalog.TransformationEntry, error) {
			return nil, serr.EntryNotFound{
				Name: job.CompleteName(STORK_TRANSFORMATION_NS, STORK_TRANSFORMATION, STORK_TRANSFORMATION_VERSION),
				Site: site,
			}
		})
}

func (s *Stork) ArgumentsAndCredentials(tx *job.Job, file *job.FileTransfer) (string, error) {
	src := file.Source()
	dest := file.Dest(true)
	tx.AddCredential(src.Site, src.PFN)
	tx.AddCredential(dest.Site, dest.PFN)
	return src.PFN + " " + dest.PFN, nil
}
