package redistmpl

import "strings"

// Version is the current version of the redistmpl library.
const Version = "0.1.0"

// GitCommit and BuildTime are set by build flags
var (
	GitCommit string
	BuildTime string
)

// VersionString returns the version followed by the commit and build time when known
func VersionString() string {
	parts := []string{Version}
	if GitCommit != "" {
		parts = append(parts, "commit "+GitCommit)
	}
	if BuildTime != "" {
		parts = append(parts, "built "+BuildTime)
	}
	return strings.Join(parts, ", ")
}
