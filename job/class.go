// Copyright 2020, Square, Inc.

package job

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// JobClass is the role a job plays in the planned workflow.
type JobClass uint8

var EJobClass = JobClass(0)

func (JobClass) Unknown() JobClass              { return JobClass(0) }
func (JobClass) Compute() JobClass              { return JobClass(1) }
func (JobClass) StageIn() JobClass              { return JobClass(2) }
func (JobClass) StageOut() JobClass             { return JobClass(3) }
func (JobClass) InterPool() JobClass            { return JobClass(4) }
func (JobClass) StageInWorkerPackage() JobClass { return JobClass(5) }
func (JobClass) SymlinkStageIn() JobClass       { return JobClass(6) }
func (JobClass) Chmod() JobClass                { return JobClass(7) }

func (c *JobClass) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(c), s, true)
	if err == nil {
		*c = val.(JobClass)
	}
	return err
}

func (c JobClass) String() string {
	return enum.StringInt(c, reflect.TypeOf(c))
}

// IsTransfer returns true for the classes a transfer implementation builds.
func (c JobClass) IsTransfer() bool {
	switch c {
	case EJobClass.StageIn(), EJobClass.StageOut(), EJobClass.InterPool(),
		EJobClass.StageInWorkerPackage(), EJobClass.SymlinkStageIn():
		return true
	}
	return false
}

func (c JobClass) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}
