//go:build !purego
// +build !purego

package store

// Compiled for cgo builds. The mattn driver links the C SQLite with FTS5
// enabled, which backs the code_fts virtual table.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
