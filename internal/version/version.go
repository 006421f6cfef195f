package version

import (
	"fmt"
	"runtime"
)

// Version contains the application version information.
// Set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/taskescrow/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the version command.
func String() string {
	return fmt.Sprintf("taskescrow %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}
