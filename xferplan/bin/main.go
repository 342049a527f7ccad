// Copyright 2020, Square, Inc.

package main

import (
	"fmt"
	"os"

	"github.com/square/xferplan/app"
	"github.com/square/xferplan/proto"
	"github.com/square/xferplan/xferplan"
)

func main() {
	if err := xferplan.Run(app.Defaults(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, proto.NewError("xferplan: %s", err))
		os.Exit(1)
	}
}
