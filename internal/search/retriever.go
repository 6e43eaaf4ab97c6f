package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syntheo/syntheo/internal/embedder"
	"github.com/syntheo/syntheo/internal/hasher"
	"github.com/syntheo/syntheo/internal/store"
	"github.com/syntheo/syntheo/internal/vecstore"
	"github.com/syntheo/syntheo/pkg/types"
)

// queryCacheSize bounds the in-memory result cache.
const queryCacheSize = 256

// Retriever runs the hybrid retrieval pipeline: expand, retrieve both
// channels in parallel, fuse, boost, filter, sort, re-rank.
type Retriever struct {
	store    *store.Store
	vectors  *vecstore.Store
	embedder embedder.Embedder
	expander *Expander
	efSearch int
	logger   *slog.Logger

	cache *lru.Cache[string, []types.SearchResult]
}

// NewRetriever wires a retriever over opened stores.
func NewRetriever(st *store.Store, vs *vecstore.Store, emb embedder.Embedder, efSearch int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []types.SearchResult](queryCacheSize)
	return &Retriever{
		store:    st,
		vectors:  vs,
		embedder: emb,
		expander: NewExpander(),
		efSearch: efSearch,
		logger:   logger,
		cache:    cache,
	}
}

// channelHits carries one retrieval channel's scores keyed by block ID.
type channelHits struct {
	scores map[string]float64
	err    error
}

// Search answers a natural-language query. Results are sorted by descending
// score. Boosting can lift a score above 1; the re-rank pass, when it runs,
// clips scores to at most 1. Both channels disabled yields an empty result.
func (r *Retriever) Search(ctx context.Context, query string, opts types.SearchOptions) ([]types.SearchResult, error) {
	start := time.Now()
	normalizeOptions(&opts)

	if opts.SemanticOnly && opts.KeywordOnly {
		return nil, nil
	}

	key := cacheKey(query, opts)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	fetch := 2 * opts.Limit

	semChan := make(chan channelHits, 1)
	kwChan := make(chan channelHits, 1)

	if opts.KeywordOnly {
		semChan <- channelHits{scores: map[string]float64{}}
	} else {
		go r.runSemantic(ctx, query, fetch, semChan)
	}
	if opts.SemanticOnly {
		kwChan <- channelHits{scores: map[string]float64{}}
	} else {
		go r.runKeyword(ctx, query, fetch, kwChan)
	}

	var sem, kw channelHits
	for i := 0; i < 2; i++ {
		select {
		case sem = <-semChan:
			semChan = nil
		case kw = <-kwChan:
			kwChan = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// One channel may fail; both failing fails the query.
	if sem.err != nil && kw.err != nil {
		return nil, sem.err
	}
	if sem.err != nil {
		r.logger.Warn("semantic channel failed", "error", sem.err)
		sem.scores = map[string]float64{}
	}
	if kw.err != nil {
		r.logger.Warn("keyword channel failed", "error", kw.err)
		kw.scores = map[string]float64{}
	}

	results, err := r.fuse(ctx, sem.scores, kw.scores, opts)
	if err != nil {
		return nil, err
	}

	corpus, err := r.corpusContext(ctx)
	if err != nil {
		return nil, err
	}
	for i := range results {
		boost(&results[i], query, corpus)
	}

	results = filterResults(results, opts)
	sortByScore(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if opts.Rerank && len(results) > 1 {
		rerank(results, query)
	}

	r.cache.Add(key, results)
	r.recordStat(ctx, query, results, time.Since(start))
	return results, nil
}

// InvalidateCache drops cached query results; called after every ingest.
func (r *Retriever) InvalidateCache() {
	r.cache.Purge()
}

// runSemantic embeds the original query and searches the ANN. Labels whose
// mapping is gone are tombstones and are dropped silently.
func (r *Retriever) runSemantic(ctx context.Context, query string, fetch int, out chan<- channelHits) {
	res := channelHits{scores: map[string]float64{}}
	defer func() { out <- res }()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		res.err = err
		return
	}

	for _, hit := range r.vectors.Search(vec, fetch, r.efSearch) {
		blockID, err := r.store.BlockIDForLabel(ctx, hit.Label)
		if err != nil {
			continue
		}
		if s := hit.Score(); s > res.scores[blockID] {
			res.scores[blockID] = s
		}
	}
}

// runKeyword searches the full-text index with the expanded query set.
// BM25 scores normalize to [0, 1] as min(score/10, 1).
func (r *Retriever) runKeyword(ctx context.Context, query string, fetch int, out chan<- channelHits) {
	res := channelHits{scores: map[string]float64{}}
	defer func() { out <- res }()

	// Keyword matching is disjunctive, so the expansions collapse into one
	// OR query over their union of tokens.
	expanded := strings.Join(r.expander.Expand(query), " ")

	hits, err := r.store.SearchKeyword(ctx, expanded, fetch)
	if err != nil {
		res.err = err
		return
	}
	for _, h := range hits {
		s := h.Score / 10
		if s > 1 {
			s = 1
		}
		if s > res.scores[h.BlockID] {
			res.scores[h.BlockID] = s
		}
	}
}

// fuse unions the channels on block ID with a weighted score average and
// joins through the catalog. Entries whose block vanished are skipped.
func (r *Retriever) fuse(ctx context.Context, sem, kw map[string]float64, opts types.SearchOptions) ([]types.SearchResult, error) {
	ids := make([]string, 0, len(sem)+len(kw))
	seen := make(map[string]bool, len(sem)+len(kw))
	for id := range sem {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range kw {
		if !seen[id] {
			ids = append(ids, id)
		}
	}

	blocks, err := r.store.BlocksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	ws, wk := opts.SemanticWeight, opts.KeywordWeight
	results := make([]types.SearchResult, 0, len(blocks))
	for _, id := range ids {
		block, ok := blocks[id]
		if !ok {
			continue
		}
		s, k := sem[id], kw[id]
		results = append(results, types.SearchResult{
			Block:         block,
			Score:         (s*ws + k*wk) / (ws + wk),
			SemanticScore: s,
			KeywordScore:  k,
		})
	}
	return results, nil
}

func (r *Retriever) corpusContext(ctx context.Context) (corpusContext, error) {
	recent, err := r.store.RecentFiles(ctx, 10)
	if err != nil {
		return corpusContext{}, err
	}
	hist, err := r.store.LanguageHistogram(ctx)
	if err != nil {
		return corpusContext{}, err
	}

	total := 0
	for _, n := range hist {
		total += n
	}
	share := make(map[string]float64, len(hist))
	if total > 0 {
		for lang, n := range hist {
			share[lang] = float64(n) / float64(total)
		}
	}
	return corpusContext{recentFiles: recent, languageShare: share}, nil
}

func (r *Retriever) recordStat(ctx context.Context, query string, results []types.SearchResult, elapsed time.Duration) {
	avg := 0.0
	for _, res := range results {
		avg += res.Score
	}
	if len(results) > 0 {
		avg /= float64(len(results))
	}

	stat := &types.SearchStat{
		QueryHash:       hasher.HashBytes([]byte(query))[:16],
		Query:           query,
		ResultCount:     len(results),
		AvgScore:        avg,
		ExecutionTimeMS: elapsed.Milliseconds(),
		Timestamp:       time.Now().UnixMilli(),
	}
	if err := r.store.RecordSearchStat(ctx, stat); err != nil {
		r.logger.Warn("record search stat", "error", err)
	}
}

func filterResults(results []types.SearchResult, opts types.SearchOptions) []types.SearchResult {
	kept := results[:0]
	for _, res := range results {
		if opts.Language != "" && res.Block.Language != opts.Language {
			continue
		}
		if opts.BlockType != "" && string(res.Block.Type) != opts.BlockType {
			continue
		}
		if res.Score < opts.MinScore {
			continue
		}
		kept = append(kept, res)
	}
	return kept
}

func normalizeOptions(opts *types.SearchOptions) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.SemanticWeight <= 0 && opts.KeywordWeight <= 0 {
		opts.SemanticWeight = 0.7
		opts.KeywordWeight = 0.3
	}
}

func cacheKey(query string, opts types.SearchOptions) string {
	return fmt.Sprintf("%s|%s|%s|%d|%v|%v|%v|%.3f|%.3f|%.3f",
		query, opts.Language, opts.BlockType, opts.Limit,
		opts.SemanticOnly, opts.KeywordOnly, opts.Rerank,
		opts.MinScore, opts.SemanticWeight, opts.KeywordWeight)
}
