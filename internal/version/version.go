// Package version reports which adbpg build is running. Release builds set
// the variables with -ldflags "-X github.com/54b3r/adbpg-go/internal/version.Version=...";
// other builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = s.Value
			}
		}
	}
}

// String is the one-line form printed by `adbpg version`.
func String() string {
	return fmt.Sprintf("adbpg %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
