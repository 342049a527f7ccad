// Copyright 2020, Square, Inc.

package implementation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/square/xferplan/config"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/job"
)

// NewFunc is the function that implementations register at init time.
type NewFunc func(bag *Bag) (Implementation, error)

// NewFuncs is a map containing all the registered implementations.
var NewFuncs = map[string]NewFunc{}

// Register registers a new implementation new function.
// Not safe for concurrent use. Safe for use from package init.
func Register(name string, f NewFunc) {
	NewFuncs[name] = f
}

// Registered returns the sorted names of all registered implementations.
func Registered() []string {
	names := make([]string, 0, len(NewFuncs))
	for name := range NewFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slots returns the job purposes an implementation is chosen for.
func Slots() []string {
	return []string{
		config.SLOT_STAGE_IN,
		config.SLOT_INTER,
		config.SLOT_STAGE_OUT,
		config.SLOT_SETUP,
		config.SLOT_SYMLINK,
	}
}

// SlotForClass returns the slot of transfer jobs of class c.
func SlotForClass(c job.JobClass) (string, error) {
	switch c {
	case job.EJobClass.StageIn():
		return config.SLOT_STAGE_IN, nil
	case job.EJobClass.InterPool():
		return config.SLOT_INTER, nil
	case job.EJobClass.StageOut():
		return config.SLOT_STAGE_OUT, nil
	case job.EJobClass.StageInWorkerPackage():
		return config.SLOT_SETUP, nil
	case job.EJobClass.SymlinkStageIn():
		return config.SLOT_SYMLINK, nil
	}
	return "", fmt.Errorf("no transfer implementation slot for job class %s", c)
}

// Load returns the implementation configured for slot. Names qualified with
// a package (e.g. implementation.GUC) are reduced to the last element.
func Load(bag *Bag, slot string) (Implementation, error) {
	if bag == nil {
		return nil, fmt.Errorf("loading %s implementation: nil bag", slot)
	}
	configured := bag.Properties.Impl(slot)
	name := configured
	if i := strings.LastIndex(name, "."); i > -1 {
		name = name[i+1:]
	}
	f, ok := NewFuncs[name]
	if !ok {
		return nil, serr.UnknownImplementation{Slot: slot, Name: configured}
	}
	impl, err := f(bag)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s implementation for %s transfers", name, slot)
	}
	return impl, nil
}
