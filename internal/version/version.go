// Package version carries build metadata stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/rbright/parley/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// ClientType is reported to the query service as the client kind.
const ClientType = "parley-linux"

func String() string {
	return fmt.Sprintf("parley %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}
