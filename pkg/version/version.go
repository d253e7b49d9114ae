package version

import "fmt"

// Version and CommitHash are set at build time with -ldflags. Defaults are
// useful for local development.
var (
	CommitHash string = "unknown"
	Version    string = "dev"
)

// Describe renders the one-line string printed by --version.
func Describe() string {
	return fmt.Sprintf("kgraphd %s (%s)", Version, CommitHash)
}
