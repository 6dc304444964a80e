package version

import "github.com/fatih/color"

// Version information for the rill CLI.
// These variables can be overridden at build time via -ldflags.

var (
	majorColor = color.New(color.FgCyan, color.Bold)
	minorColor = color.New(color.FgMagenta, color.Bold)
	patchColor = color.New(color.FgWhite, color.Bold)

	// Version is the semantic version of the CLI.
	Version = majorColor.Sprint("0") + "." + minorColor.Sprint("1") + "." + patchColor.Sprint("0") + "-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Full renders the version together with whatever build metadata was
// stamped in, e.g. "0.1.0-dev (abc123, 2026-08-01)".
func Full() string {
	s := Version
	meta := ""
	if GitCommit != "" {
		meta = GitCommit
	}
	if BuildDate != "" {
		if meta != "" {
			meta += ", "
		}
		meta += BuildDate
	}
	if meta != "" {
		s += " (" + meta + ")"
	}
	return s
}
