// Copyright 2020, Square, Inc.

package implementation

import (
	"github.com/mitchellh/mapstructure"

	"github.com/square/xferplan/job"
)

// transferProfile is the pegasus profile namespace as transfer jobs read it.
type transferProfile struct {
	Threads    string `mapstructure:"transfer.threads"`
	Arguments  string `mapstructure:"transfer.arguments"`
	Proxy      bool   `mapstructure:"transfer.proxy"`
	Style      string `mapstructure:"style"`
	WorkerNode bool   `mapstructure:"pegasus.worker.node.execution"`
}

// decodeTransferProfile snapshots the pegasus namespace of p. Values that do
// not decode (e.g. transfer.proxy=maybe) are returned as an error together
// with whatever did decode.
func decodeTransferProfile(p job.Profiles) (transferProfile, error) {
	var tp transferProfile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &tp,
	})
	if err != nil {
		return tp, err
	}
	err = dec.Decode(p.Namespace(job.PEGASUS))
	return tp, err
}
