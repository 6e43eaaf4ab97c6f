package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/syntheo/syntheo/pkg/types"
)

const blockColumns = `block_id, file_path, start_line, end_line, content, content_hash,
	block_type, language, symbol_name, parent_symbol, chunk_index, tokens, created_at, updated_at`

// InsertBlock adds a block row to the catalog within the transaction.
func (t *Tx) InsertBlock(ctx context.Context, b *types.Block) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}

	_, err := t.querier().ExecContext(ctx, `
		INSERT INTO code_blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(block_id) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			symbol_name = excluded.symbol_name,
			parent_symbol = excluded.parent_symbol,
			tokens = excluded.tokens,
			updated_at = excluded.updated_at`,
		b.ID, b.FilePath, b.StartLine, b.EndLine, b.Content, b.ContentHash,
		string(b.Type), b.Language, b.SymbolName, b.ParentSymbol,
		b.ChunkIndex, b.Tokens, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

// DeleteBlocksByFile removes all catalog, keyword, and mapping rows for a
// file and returns the ANN labels that were mapped to its blocks. Callers
// tombstone those labels in the ANN after the transaction commits.
func (t *Tx) DeleteBlocksByFile(ctx context.Context, filePath string) ([]uint64, error) {
	q := t.querier()

	rows, err := q.QueryContext(ctx, `
		SELECT vm.label FROM vector_map vm
		JOIN code_blocks cb ON cb.block_id = vm.block_id
		WHERE cb.file_path = ?`, filePath)
	if err != nil {
		return nil, err
	}
	var labels []uint64
	for rows.Next() {
		var label uint64
		if err := rows.Scan(&label); err != nil {
			_ = rows.Close()
			return nil, err
		}
		labels = append(labels, label)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := q.ExecContext(ctx, `
		DELETE FROM vector_map WHERE block_id IN
			(SELECT block_id FROM code_blocks WHERE file_path = ?)`, filePath); err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM code_fts WHERE file_path = ?`, filePath); err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM code_blocks WHERE file_path = ?`, filePath); err != nil {
		return nil, err
	}
	return labels, nil
}

// GetBlock loads one block by ID.
func (s *Store) GetBlock(ctx context.Context, blockID string) (*types.Block, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM code_blocks WHERE block_id = ?`, blockID)
	b, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BlocksForFile lists a file's blocks in source order.
func (s *Store) BlocksForFile(ctx context.Context, filePath string) ([]*types.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM code_blocks
		 WHERE file_path = ? ORDER BY start_line, chunk_index`, filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var blocks []*types.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// BlocksByIDs loads blocks for the given IDs. Missing IDs are silently
// absent from the result; retrieval joins must skip dangling references,
// never error on them.
func (s *Store) BlocksByIDs(ctx context.Context, ids []string) (map[string]*types.Block, error) {
	result := make(map[string]*types.Block, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM code_blocks WHERE block_id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result[b.ID] = b
	}
	return result, rows.Err()
}

// CountBlocks returns the catalog size.
func (s *Store) CountBlocks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM code_blocks`).Scan(&n)
	return n, err
}

// LanguageHistogram returns the number of currently indexed files per
// language.
func (s *Store) LanguageHistogram(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) FROM files
		WHERE is_deleted = 0 AND language != ''
		GROUP BY language`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	hist := make(map[string]int)
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		hist[lang] = n
	}
	return hist, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlock(row rowScanner) (*types.Block, error) {
	var b types.Block
	var blockType string
	err := row.Scan(
		&b.ID, &b.FilePath, &b.StartLine, &b.EndLine, &b.Content, &b.ContentHash,
		&blockType, &b.Language, &b.SymbolName, &b.ParentSymbol,
		&b.ChunkIndex, &b.Tokens, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Type = types.BlockType(blockType)
	return &b, nil
}
