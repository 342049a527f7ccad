// Copyright 2018-2020, Square, Inc.

// Package retry retries a function, used when connecting to the catalog
// database on startup.
package retry

import (
	"time"

	"github.com/pkg/errors"
)

// TryFunc is the function to retry. It is done when it returns nil.
type TryFunc func() error

// LogFunc is called with the attempt number (from 1) and error of every
// failed attempt that will be retried.
type LogFunc func(attempt int, err error)

// Do calls tryFunc up to tries times. It sleeps wait after the first failed
// attempt and doubles the wait after every other one, up to max. A zero max
// means no upper bound. The last error is returned wrapped with the number
// of attempts; errors.Cause returns it unwrapped.
func Do(tries int, wait, max time.Duration, tryFunc TryFunc, logFunc LogFunc) error {
	if tries < 1 {
		tries = 1
	}
	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		if err = tryFunc(); err == nil {
			return nil
		}
		if attempt == tries {
			break
		}
		if logFunc != nil {
			logFunc(attempt, err)
		}
		time.Sleep(wait)
		if wait *= 2; max > 0 && wait > max {
			wait = max
		}
	}
	return errors.Wrapf(err, "failed after %d attempts", tries)
}
