// Package contracts holds the types shared by the vidgate server, client
// and admin tools.
package contracts

import "runtime"

const (
	// Version is the release of the vidgate binaries.
	Version = "0.4.0"

	// APIVersion is the version of the license protocol spoken over HTTP.
	APIVersion = "v1"
)

// Set with -ldflags "-X vidgate/pkg/contracts.GitCommit=..." at release.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is served at /api/version and printed by `vidgate version`.
type VersionInfo struct {
	Version      string `json:"version"`
	APIVersion   string `json:"api_version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		APIVersion:   APIVersion,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
}
