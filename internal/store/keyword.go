package store

import (
	"context"
	"regexp"
	"strings"
)

// KeywordHit is one BM25-ranked full-text match.
type KeywordHit struct {
	BlockID string
	// Score is the positive BM25 relevance (higher is better).
	Score float64
}

// InsertFTS adds a block to the full-text index within the transaction.
// Existing rows for the block are replaced.
func (t *Tx) InsertFTS(ctx context.Context, blockID, filePath, content, symbolName string) error {
	q := t.querier()
	if _, err := q.ExecContext(ctx, `DELETE FROM code_fts WHERE block_id = ?`, blockID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO code_fts (block_id, file_path, content, symbol_name) VALUES (?, ?, ?, ?)`,
		blockID, filePath, content, symbolName)
	return err
}

var nonWord = regexp.MustCompile(`[^\w\s]+`)

// SanitizeQuery strips non-word characters and splits the query into
// tokens. Malformed input normalizes to an empty token list, never an
// error.
func SanitizeQuery(raw string) []string {
	cleaned := nonWord.ReplaceAllString(raw, " ")
	fields := strings.Fields(cleaned)
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// SearchKeyword runs a disjunctive full-text query over block content and
// symbol names. An empty sanitized query returns an empty list.
func (s *Store) SearchKeyword(ctx context.Context, raw string, limit int) ([]KeywordHit, error) {
	tokens := SanitizeQuery(raw)
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	// Quote each token so stemmed FTS syntax characters can't leak in.
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	match := strings.Join(quoted, " OR ")

	// FTS5 bm25() is lower-is-better (negative); flip the sign so callers
	// see a positive relevance score.
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, -bm25(code_fts) AS score
		FROM code_fts
		WHERE code_fts MATCH ?
		ORDER BY score DESC
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.BlockID, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
