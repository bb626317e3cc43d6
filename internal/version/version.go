// Package version holds build-time version metadata for magellan.
package version

// Version is the semantic version of the magellan core. BuildDate and
// GitCommit are overridden at build time via -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "development"
	GitCommit = "unknown"
)

// SchemaVersion is the JSON export schema version (§6).
const SchemaVersion = "2.0.0"

// String returns the full version line used by `magellan --version`.
func String() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}
