// Package version provides build-time version information.
package version

// These variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/picodoc-lang/picodoc/internal/version.Version=v0.3.0"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
