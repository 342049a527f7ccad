// Copyright 2017-2020, Square, Inc.

package job

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNamespace = errors.New("unknown profile namespace")
	ErrNoLFN            = errors.New("file has no logical name")
	ErrNilFile          = errors.New("nil file")

	errNoScheme = errors.New("no scheme")
)

type ErrNoURL struct {
	LFN       string
	Direction string
}

func (e ErrNoURL) Error() string {
	return fmt.Sprintf("file %s has no %s URL", e.LFN, e.Direction)
}
