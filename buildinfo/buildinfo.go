// Package buildinfo exposes version properties set at link time:
//
//	go build -ldflags "-X .../buildinfo.version=v1.2.0 -X .../buildinfo.gitCommit=$(git rev-parse --short HEAD)"
package buildinfo

import "fmt"

// Properties describes the running binary.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	return Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
	}
}

func (p Properties) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", p.Version, p.GitCommit, p.BuildTime)
}
