// Copyright 2020, Square, Inc.

package implementation

import (
	"net/url"

	"github.com/square/xferplan/catalog"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

const (
	CONDOR_DESCRIPTION = "Condor File Transfer Mechanism"

	FILE_URL_SCHEME = "file"
)

func init() {
	Register("Condor", NewCondor)
}

// Condor stages files in with condor's own file transfer: the source paths
// are added to the compute job's transfer_input_files and the transfer job
// is a placeholder that does nothing. Only stage-in from the submit host is
// possible.
type Condor struct {
	*Builder
}

var _ Implementation = &Condor{}

func NewCondor(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, CONDOR_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return &Condor{Builder: b}, nil
}

func (c *Condor) Description() string {
	return CONDOR_DESCRIPTION
}

// DoesPreserveXBit returns true: condor keeps the mode of transferred files.
func (c *Condor) DoesPreserveXBit() bool {
	return true
}

func (c *Condor) UseThirdPartyTransferAlways() bool {
	return false
}

// TransformationEntry returns the entry of the placeholder job. It is never
// in the catalog.
func (c *Condor) TransformationEntry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return &catalog.TransformationEntry{
		Namespace:    NOOP_NAMESPACE,
		Name:         NOOP_NAME,
		Version:      NOOP_VERSION,
		Site:         job.SITE_LOCAL,
		PhysicalPath: NOOP_EXECUTABLE,
		Type:         catalog.INSTALLED,
		SysInfo:      catalog.DEFAULT_SYSINFO,
	}, nil
}

func (c *Condor) CreateTransferJob(compute *job.Job, site string, files, execFiles []*job.FileTransfer,
	name string, class job.JobClass) (*job.Job, error) {
	if class != job.EJobClass.StageIn() {
		return nil, serr.ContractViolation{
			Job:    name,
			Class:  class.String(),
			Reason: "condor file transfers can only stage in",
		}
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := f.Validate(); err != nil {
			return nil, serr.InvalidWorkflow{Message: err.Error()}
		}
		src := f.Source()
		if src.Site != job.SITE_LOCAL {
			return nil, serr.ContractViolation{
				Job:    name,
				Class:  class.String(),
				Reason: "source of " + f.LFN + " is at site " + src.Site + ", not " + job.SITE_LOCAL,
			}
		}
		u, err := url.Parse(src.PFN)
		if err != nil {
			return nil, serr.MalformedURL{URL: src.PFN, Err: err}
		}
		if u.Scheme != FILE_URL_SCHEME {
			return nil, serr.ContractViolation{
				Job:    name,
				Class:  class.String(),
				Reason: "source " + src.PFN + " of " + f.LFN + " is not a file url",
			}
		}
		paths = append(paths, u.Path)
	}
	for _, p := range paths {
		compute.Profiles.AppendList(job.CONDOR, job.CONDOR_TRANSFER_INPUT_FILES, p)
	}

	tx := c.newTransferJob(compute, job.SITE_LOCAL, name, class, files)
	tx.Universe = job.UNIVERSE_LOCAL
	tx.Executable = NOOP_EXECUTABLE
	tx.SetTransformation(NOOP_NAMESPACE, NOOP_NAME, NOOP_VERSION)
	tx.SetDerivation(NOOP_NAMESPACE, NOOP_NAME, NOOP_VERSION)
	tx.Profiles.Set(job.CONDOR, job.CONDOR_NOOP_JOB, "true")
	tx.Profiles.Set(job.CONDOR, job.CONDOR_NOOP_JOB_EXIT_CODE, "0")
	tx.Profiles.SetIfAbsent(job.PEGASUS, job.PEGASUS_GRIDSTART, GRIDSTART_NONE)
	c.ApplyPriority(tx)
	return tx, nil
}
