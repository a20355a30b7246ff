// Package version holds the build version, set at link time with
// -ldflags "-X github.com/apartresearch/reward-analyzer/internal/version.Version=...".
package version

// Version is the version of the build.
var Version = "dev"
