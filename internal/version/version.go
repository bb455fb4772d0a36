// Package version holds the revq build metadata injected via ldflags.
package version

// Service is the logical service name, used in startup logs and as the
// production logger's service field.
const Service = "revq"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
