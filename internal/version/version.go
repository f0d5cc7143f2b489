// Package version carries the build stamp injected via ldflags and served
// on the health endpoint.
package version

import "runtime"

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build is the stamp served under "version" in the health response.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Short returns just the version string for the response header.
func Short() string {
	return Version
}

// Stamp returns the full build stamp.
func Stamp() Build {
	return Build{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}
