// Package version holds build metadata injected at link time.
package version

import "runtime"

// Populated via -ldflags at release build time, e.g.:
//
//	go build -ldflags "-X github.com/jackzampolin/biograph/version.GitRelease=v0.3.0 ..."
var (
	// GitRelease is the release tag or branch name.
	GitRelease = "dev"

	// GitCommit is the short commit hash.
	GitCommit = "unknown"

	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"
)

// GoInfo reports the Go runtime used for the build.
var GoInfo = runtime.Version()
