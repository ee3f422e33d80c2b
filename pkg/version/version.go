// Package version holds build metadata of the neardup binary.
package version

import (
	"runtime/debug"
)

const unknown = "<unknown>"

// Set with -ldflags "-X github.com/Sumatoshi-tech/neardup/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the embedded build info when
// they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = s.Value
			}
		}
	}
}

// String formats the version line printed by the CLI.
func String() string {
	return "neardup " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
