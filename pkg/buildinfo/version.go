// Package buildinfo exposes the version stamped into harvest binaries.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/harvest/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/harvest/pkg/buildinfo.Commit=$(git rev-parse --short HEAD)" ./cmd/harvest
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// ReferenceVersion tags the embedded reference tables (continents,
	// aliases, flags). pkg/reference checks it against the YAML header.
	ReferenceVersion = "2024.1"
)

// String returns a multi-line description for `harvest version`.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\nreference: %s\ngo: %s",
		Version, Commit, Date, ReferenceVersion, runtime.Version())
}

// UserAgent is sent on dataset and geometry downloads.
func UserAgent() string {
	return "harvest/" + Version
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (%s, %s)\n", Version, Commit, Date)
}
