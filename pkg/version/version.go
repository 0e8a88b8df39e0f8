// Package version holds build metadata of the ordtree binary.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Set at build time with -ldflags "-X github.com/Sumatoshi-tech/ordtree/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the VCS stamp of the build
// when the linker did not set them.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the version line printed by `ordtree version`.
func String() string {
	return fmt.Sprintf("ordtree %s (commit: %s, built: %s)", Version, Commit, Date)
}
