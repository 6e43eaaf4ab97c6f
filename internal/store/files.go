package store

import (
	"context"
	"database/sql"

	"github.com/syntheo/syntheo/pkg/types"
)

// UpsertFile writes a file summary row within the transaction.
func (t *Tx) UpsertFile(ctx context.Context, f *types.FileRecord) error {
	_, err := t.querier().ExecContext(ctx, `
		INSERT INTO files (file_path, file_hash, language, size_bytes, line_count, last_indexed, block_count, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash = excluded.file_hash,
			language = excluded.language,
			size_bytes = excluded.size_bytes,
			line_count = excluded.line_count,
			last_indexed = excluded.last_indexed,
			block_count = excluded.block_count,
			is_deleted = excluded.is_deleted`,
		f.FilePath, f.FileHash, f.Language, f.SizeBytes, f.LineCount,
		f.LastIndexed, f.BlockCount, boolToInt(f.IsDeleted))
	return err
}

// DeleteFile removes a file summary row within the transaction.
func (t *Tx) DeleteFile(ctx context.Context, filePath string) error {
	_, err := t.querier().ExecContext(ctx, `DELETE FROM files WHERE file_path = ?`, filePath)
	return err
}

// GetFile loads one file summary.
func (s *Store) GetFile(ctx context.Context, filePath string) (*types.FileRecord, error) {
	var f types.FileRecord
	var deleted int
	err := s.db.QueryRowContext(ctx, `
		SELECT file_path, file_hash, language, size_bytes, line_count, last_indexed, block_count, is_deleted
		FROM files WHERE file_path = ?`, filePath).Scan(
		&f.FilePath, &f.FileHash, &f.Language, &f.SizeBytes, &f.LineCount,
		&f.LastIndexed, &f.BlockCount, &deleted)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.IsDeleted = deleted != 0
	return &f, nil
}

// ListFiles returns all live file summaries ordered by path.
func (s *Store) ListFiles(ctx context.Context) ([]*types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, file_hash, language, size_bytes, line_count, last_indexed, block_count, is_deleted
		FROM files WHERE is_deleted = 0 ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*types.FileRecord
	for rows.Next() {
		var f types.FileRecord
		var deleted int
		if err := rows.Scan(&f.FilePath, &f.FileHash, &f.Language, &f.SizeBytes,
			&f.LineCount, &f.LastIndexed, &f.BlockCount, &deleted); err != nil {
			return nil, err
		}
		f.IsDeleted = deleted != 0
		files = append(files, &f)
	}
	return files, rows.Err()
}

// CountFiles returns the number of live files.
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE is_deleted = 0`).Scan(&n)
	return n, err
}

// RecentFiles returns the paths of the n most recently indexed files.
func (s *Store) RecentFiles(ctx context.Context, n int) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path FROM files WHERE is_deleted = 0
		ORDER BY last_indexed DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	recent := make(map[string]bool, n)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		recent[p] = true
	}
	return recent, rows.Err()
}

// IndexSizeMB reports the database size from the page stats.
func (s *Store) IndexSizeMB(ctx context.Context) float64 {
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	return float64(pageCount*pageSize) / (1024 * 1024)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
