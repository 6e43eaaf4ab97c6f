package types

// SearchOptions controls the hybrid retrieval pipeline.
type SearchOptions struct {
	Limit          int
	Language       string  // exact-match filter, empty = any
	BlockType      string  // exact-match filter, empty = any
	MinScore       float64 // applied after boosting
	SemanticOnly   bool
	KeywordOnly    bool
	SemanticWeight float64 // default 0.7
	KeywordWeight  float64 // default 0.3
	Rerank         bool
}

// DefaultSearchOptions returns the options used when a caller leaves
// everything unset.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:          20,
		MinScore:       0.3,
		SemanticWeight: 0.7,
		KeywordWeight:  0.3,
		Rerank:         true,
	}
}

// SearchResult is one ranked hit returned to the caller.
type SearchResult struct {
	Block *Block

	// Score is the final fused, boosted (and possibly re-ranked) score.
	Score float64
	// SemanticScore and KeywordScore are the per-channel scores in [0,1]
	// before fusion; zero when the channel did not surface the block.
	SemanticScore float64
	KeywordScore  float64
}

// WorkspaceStatus summarizes the indexed workspace.
type WorkspaceStatus struct {
	TotalFiles  int            `json:"totalFiles"`
	TotalBlocks int            `json:"totalBlocks"`
	Languages   map[string]int `json:"languages"`
	IndexSizeMB float64        `json:"indexSizeMB"`
	LastIndexed int64          `json:"lastIndexed"`
}
