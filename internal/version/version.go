// Package version exposes the build stamp set through -ldflags.
package version

// Overridden at build time, e.g.
// -ldflags "-X .../internal/version.Version=v1.2.0".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the stamp for startup logs: "dev (unknown, unknown)".
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
