// Package version exposes build metadata stamped in at link time.
package version

import (
	"fmt"
	"strings"
)

const unknown = "unknown"

var (
	// AppVersion is overridden at build time:
	// go build -ldflags="-X github.com/admitdesk/admitdesk/pkg/version.AppVersion=v1.2.3"
	AppVersion = "dev"

	// GitCommit is overridden at build time.
	GitCommit = unknown

	// BuildTime is overridden at build time, RFC3339.
	BuildTime = unknown
)

// Info is the version metadata of one build.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the running build's metadata.
func Current(serviceName string) Info {
	return Info{
		Service:   orDefault(serviceName, unknown),
		Version:   orDefault(AppVersion, "dev"),
		Commit:    orDefault(GitCommit, unknown),
		BuildTime: orDefault(BuildTime, unknown),
	}
}

// String returns a log-friendly representation.
func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s)", i.Service, i.Version, i.Commit, i.BuildTime)
}

func orDefault(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
