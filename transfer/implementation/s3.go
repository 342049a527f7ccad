// Copyright 2020, Square, Inc.

package implementation

import (
	"github.com/square/xferplan/catalog"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

const (
	S3_TRANSFORMATION_NS      = "amazon"
	S3_TRANSFORMATION         = "s3cmd"
	S3_TRANSFORMATION_VERSION = ""
	S3_DERIVATION_NS          = "amazon"
	S3_DERIVATION             = "s3cmd"
	S3_DERIVATION_VERSION     = ""

	S3_DESCRIPTION = "Amazon S3 client s3cmd"
)

func init() {
	Register("S3", NewS3)
}

// S3 moves one file per job with s3cmd: put to a bucket, get from a bucket,
// or cp between buckets. The user's s3cfg is shipped with the job.
type S3 struct {
	*Builder
}

func NewS3(bag *Bag) (Implementation, error) {
	b, err := NewBuilder(bag, S3_DESCRIPTION)
	if err != nil {
		return nil, err
	}
	return NewSingle(b, &S3{Builder: b}), nil
}

func (s *S3) Description() string {
	return S3_DESCRIPTION
}

func (s *S3) DoesPreserveXBit() bool {
	return false
}

func (s *S3) UseThirdPartyTransferAlways() bool {
	return false
}

func (s *S3) Derivation() (string, string, string) {
	return S3_DERIVATION_NS, S3_DERIVATION, S3_DERIVATION_VERSION
}

// Entry returns the s3cmd entry at site. s3cmd has no default location.
func (s *S3) Entry(site string, class job.JobClass) (*catalog.TransformationEntry, error) {
	return s.LookupOrDefault(S3_TRANSFORMATION_NS, S3_TRANSFORMATION, S3_TRANSFORMATION_VERSION, site,
		func() (*catalog.TransformationEntry, error) {
			return nil, serr.EntryNotFound{
				Name: job.CompleteName(S3_TRANSFORMATION_NS, S3_TRANSFORMATION, S3_TRANSFORMATION_VERSION),
				Site: site,
			}
		})
}

// ArgumentsAndCredentials returns " <command> <src> <dest>". Local ends of
// the transfer are given as paths.
func (s *S3) ArgumentsAndCredentials(tx *job.Job, file *job.FileTransfer) (string, error) {
	src := file.Source()
	dest := file.Dest(true)
	srcS3, destS3 := isS3(src), isS3(dest)

	var cmd, from, to string
	var err error
	switch {
	case srcS3 && destS3:
		cmd, from, to = "cp", src.PFN, dest.PFN
	case destS3:
		cmd, to = "put", dest.PFN
		if from, err = src.Path(); err != nil {
			return "", err
		}
	case srcS3:
		cmd, from = "get", src.PFN
		if to, err = dest.Path(); err != nil {
			return "", err
		}
	default:
		return "", serr.ContractViolation{
			Job:    tx.Name,
			Class:  tx.Class.String(),
			Reason: "neither " + src.PFN + " nor " + dest.PFN + " is an s3 url",
		}
	}

	tx.AddCredential(src.Site, src.PFN)
	tx.AddCredential(dest.Site, dest.PFN)
	s.CheckAndTransferS3cfg(tx)
	return " " + cmd + " " + from + " " + to, nil
}

func isS3(u job.URL) bool {
	scheme := u.Scheme()
	return scheme == "s3" || scheme == "s3s"
}
