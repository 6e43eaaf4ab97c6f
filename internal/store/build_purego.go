//go:build purego
// +build purego

package store

// Compiled with the purego tag. The modernc driver is a pure Go SQLite
// translation with FTS5 built in; no C compiler required.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
