// Package common holds build metadata and logging setup shared by the
// binaries.
package common

var (
	// Version is set at build time with -ldflags "-X .../common.Version=..."
	Version = "dev"

	PackageName = "github.com/ruteri/omnichain-configurator"
)
