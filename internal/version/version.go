// Package version exposes build-time version metadata.
package version

import "fmt"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// String formats the user-facing version line.
func String() string {
	return fmt.Sprintf("quill %s", Version)
}
