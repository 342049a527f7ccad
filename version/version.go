// Copyright 2017-2020, Square, Inc.

// Package version provides the xferplan version.
package version

const VERSION = "1.0.0"

// HEADER is the HTTP response header that carries Version.
const HEADER = "X-Xferplan-Version"

// BUILD is appended to VERSION if set: "VERSION+BUILD". The "+" is included
// automatically. It is set at link time:
//
//	go build -ldflags "-X github.com/square/xferplan/version.BUILD=sq1"
var BUILD string = ""

// Version returns the semver-compatible (https://semver.org/) version string.
func Version() string {
	if BUILD == "" {
		return VERSION // 1.0.0
	}
	return VERSION + "+" + BUILD // 1.0.0+sq1
}
