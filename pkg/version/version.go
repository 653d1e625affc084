package version

import (
	"runtime"
	"runtime/debug"
)

// Build variables to be set via ldflags during compilation:
// -X 'github.com/aethermart/dataplane/pkg/version.Version=v1.0.0'
// -X 'github.com/aethermart/dataplane/pkg/version.CommitHash=abc123'
// -X 'github.com/aethermart/dataplane/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	// Version is the semantic version of the binary (e.g., "1.0.0")
	Version = "unknown"
	// CommitHash is the git commit hash used to build the binary
	CommitHash = "unknown"
	// BuildDate is the timestamp when the binary was built (RFC3339 format)
	BuildDate = "unknown"
)

// Info holds build information in a structured format.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
}

// Get returns the current build information, falling back to the
// module build info embedded by the toolchain when ldflags were not
// set.
func Get() Info {
	version := Version
	commit := CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		if commit == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	return Info{
		Version:    version,
		CommitHash: commit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
	}
}
