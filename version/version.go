// Package version exposes build metadata. The linker sets the Git values:
//
//	go build -ldflags "-X github.com/jackzampolin/lectern/version.GitRelease=v0.1.0 ..."
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// GitRelease is the release tag, or "dev".
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = ""
	// GitCommitDate is the commit timestamp.
	GitCommitDate = ""
	// GoInfo is the Go version and platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

func init() {
	if GitCommit != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			GitCommit = s.Value
		case "vcs.time":
			GitCommitDate = s.Value
		}
	}
}
