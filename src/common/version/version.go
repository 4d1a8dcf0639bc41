// Package version holds build-time version information for the upenwrt binaries.
package version

import (
	"fmt"
	"runtime"
)

// Info holds version information, usually injected with -ldflags.
type Info struct {
	// Version is the full version string, e.g. "upenwrtd v1.2.0-4f9f297"
	Version string

	// ReleaseVersion is the semantic version (e.g. "1.2.0")
	ReleaseVersion string

	// BuildDate is the ISO 8601 build timestamp
	BuildDate string

	// GitCommit is the short git commit hash
	GitCommit string
}

// Default values for unset version info
var (
	DefaultVersion        = "dev"
	DefaultReleaseVersion = "0.0.0"
	DefaultBuildDate      = "unknown"
	DefaultGitCommit      = "unknown"
)

// New creates a new Info with default values
func New() *Info {
	return &Info{
		Version:        DefaultVersion,
		ReleaseVersion: DefaultReleaseVersion,
		BuildDate:      DefaultBuildDate,
		GitCommit:      DefaultGitCommit,
	}
}

// GoVersion returns the Go runtime version
func GoVersion() string {
	return runtime.Version()
}

func (i *Info) String() string {
	return i.Version
}

// Short returns the release version and commit, e.g. "v1.2.0-4f9f297"
func (i *Info) Short() string {
	return fmt.Sprintf("v%s-%s", i.ReleaseVersion, i.GitCommit)
}

// UserAgent returns the product token sent on outbound HTTP requests
func (i *Info) UserAgent(product string) string {
	return fmt.Sprintf("%s/%s", product, i.ReleaseVersion)
}

// Full returns a detailed multi-line version string
func (i *Info) Full() string {
	return fmt.Sprintf(`%s
  Version:    %s
  Build Date: %s
  Git Commit: %s
  Go Version: %s`,
		i.Version,
		i.ReleaseVersion,
		i.BuildDate,
		i.GitCommit,
		GoVersion(),
	)
}

// Map returns version info as a map for JSON responses
func (i *Info) Map() map[string]string {
	return map[string]string{
		"version":         i.Version,
		"release_version": i.ReleaseVersion,
		"build_date":      i.BuildDate,
		"git_commit":      i.GitCommit,
		"go_version":      GoVersion(),
	}
}
