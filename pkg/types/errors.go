package types

import "errors"

// Failure taxonomy shared across the pipeline. Components wrap these with
// fmt.Errorf("...: %w", err) so callers can branch on category.
var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreCorrupt indicates an unreadable or version-mismatched on-disk
	// store. The engine refuses to start; the operator must run clear.
	ErrStoreCorrupt = errors.New("store corrupt")

	// ErrEmbedderUnavailable indicates the embedding service cannot be
	// reached at all. Mid-run per-text failures degrade to zero vectors
	// instead of raising this.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrParseFailure indicates the syntactic parser could not produce a
	// tree for a file. The file is skipped and counted.
	ErrParseFailure = errors.New("parse failure")
)
