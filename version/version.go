// Package version holds build information, overridable via ldflags.
package version

var (
	Version = "0.3.0"
	Date    = "unknown"
)
