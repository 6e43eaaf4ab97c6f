package store

import (
	"context"
	"database/sql"

	"github.com/syntheo/syntheo/pkg/types"
)

// InsertMapping records a label -> block binding within the transaction.
func (t *Tx) InsertMapping(ctx context.Context, label uint64, blockID string) error {
	_, err := t.querier().ExecContext(ctx,
		`INSERT INTO vector_map (label, block_id) VALUES (?, ?)`, label, blockID)
	return err
}

// DeleteMapping removes the binding for a block and returns its label.
func (t *Tx) DeleteMapping(ctx context.Context, blockID string) (uint64, error) {
	var label uint64
	err := t.querier().QueryRowContext(ctx,
		`SELECT label FROM vector_map WHERE block_id = ?`, blockID).Scan(&label)
	if err == sql.ErrNoRows {
		return 0, types.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	_, err = t.querier().ExecContext(ctx, `DELETE FROM vector_map WHERE block_id = ?`, blockID)
	return label, err
}

// BlockIDForLabel resolves one label; types.ErrNotFound marks a tombstone.
func (s *Store) BlockIDForLabel(ctx context.Context, label uint64) (string, error) {
	var blockID string
	err := s.db.QueryRowContext(ctx,
		`SELECT block_id FROM vector_map WHERE label = ?`, label).Scan(&blockID)
	if err == sql.ErrNoRows {
		return "", types.ErrNotFound
	}
	return blockID, err
}

// LabelForBlock resolves a block's label.
func (s *Store) LabelForBlock(ctx context.Context, blockID string) (uint64, error) {
	var label uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT label FROM vector_map WHERE block_id = ?`, blockID).Scan(&label)
	if err == sql.ErrNoRows {
		return 0, types.ErrNotFound
	}
	return label, err
}

// MaxLabel returns the highest label currently in the map, or 0 for an
// empty map.
// The ANN recovers its next-label counter as MaxLabel()+1.
func (s *Store) MaxLabel(ctx context.Context) (uint64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(label) FROM vector_map`).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return uint64(max.Int64), nil
}

// CountMappings returns the number of live label bindings.
func (s *Store) CountMappings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_map`).Scan(&n)
	return n, err
}
