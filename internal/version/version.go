// Package version identifies the runtime build.
package version

// version is the semantic version of the runtime. Overridden at link time on
// release builds.
var version = "0.9.0-dev"

// GetVersion returns the runtime version string.
func GetVersion() string {
	return version
}
