package store

import (
	"context"

	"github.com/syntheo/syntheo/pkg/types"
)

// statsRingSize caps search_stats to the most recent rows.
const statsRingSize = 1000

// RecordSearchStat appends one observability row and prunes the ring.
func (s *Store) RecordSearchStat(ctx context.Context, stat *types.SearchStat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_stats (query_hash, query, result_count, avg_score, execution_time_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stat.QueryHash, stat.Query, stat.ResultCount, stat.AvgScore,
		stat.ExecutionTimeMS, stat.Timestamp)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM search_stats WHERE id NOT IN
			(SELECT id FROM search_stats ORDER BY id DESC LIMIT ?)`, statsRingSize)
	return err
}

// RecentSearchStats returns the latest n rows, newest first.
func (s *Store) RecentSearchStats(ctx context.Context, n int) ([]*types.SearchStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_hash, query, result_count, avg_score, execution_time_ms, timestamp
		FROM search_stats ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var stats []*types.SearchStat
	for rows.Next() {
		var st types.SearchStat
		if err := rows.Scan(&st.QueryHash, &st.Query, &st.ResultCount,
			&st.AvgScore, &st.ExecutionTimeMS, &st.Timestamp); err != nil {
			return nil, err
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}
