package search

import (
	"sort"
	"strings"

	"github.com/syntheo/syntheo/pkg/types"
)

// corpusContext carries the per-query metadata the boost pass needs.
type corpusContext struct {
	recentFiles   map[string]bool
	languageShare map[string]float64
}

// boost multiplies the fused score by deterministic metadata factors.
func boost(r *types.SearchResult, query string, corpus corpusContext) {
	q := strings.ToLower(strings.TrimSpace(query))
	b := r.Block

	factor := 1.0

	// Symbol name: the strongest matching relation wins.
	sym := strings.ToLower(b.SymbolName)
	switch {
	case sym != "" && sym == q:
		factor *= 1.5
	case sym != "" && strings.Contains(sym, q) && q != "":
		factor *= 1.3
	case sym != "" && strings.Contains(q, sym):
		factor *= 1.2
	}

	// File path.
	path := strings.ToLower(b.FilePath)
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	switch {
	case q != "" && strings.Contains(path, q):
		factor *= 1.3
	case q != "" && strings.Contains(base, q):
		factor *= 1.2
	}

	if corpus.recentFiles[b.FilePath] {
		factor *= 1.25
	}

	factor *= blockTypeBoost(b.Type)
	factor *= languageBoost(corpus.languageShare[b.Language])
	factor *= channelBalanceBoost(r.SemanticScore, r.KeywordScore)

	r.Score *= factor
}

func blockTypeBoost(bt types.BlockType) float64 {
	switch {
	case bt.IsFunctionLike():
		return 1.3
	case bt == types.BlockDecoratedDef:
		return 1.25
	case bt.IsClassLike():
		return 1.2
	case bt == types.BlockInterface || bt == types.BlockTypeAlias:
		return 1.15
	case bt == types.BlockEnum:
		return 1.1
	case bt == types.BlockFile:
		return 0.95
	}
	return 1.0
}

func languageBoost(share float64) float64 {
	switch {
	case share > 0.5:
		return 1.1
	case share > 0.2:
		return 1.05
	case share > 0 && share < 0.05:
		return 0.95
	}
	return 1.0
}

func channelBalanceBoost(sem, kw float64) float64 {
	switch {
	case sem > 0.7 && kw > 0.7:
		return 1.2
	case sem > 0.8 || kw > 0.8:
		return 1.1
	case sem < 0.3 && kw < 0.3:
		return 0.8
	}
	return 1.0
}

// rerank applies the second scoring pass to the truncated top-k, then
// re-sorts. Scores are clipped at 1.0.
func rerank(results []types.SearchResult, query string) {
	q := strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(q)

	for i := range results {
		r := &results[i]
		b := r.Block
		factor := 1.0

		sym := strings.ToLower(b.SymbolName)
		switch {
		case sym != "" && sym == q:
			factor *= 1.5
		case sym != "" && q != "" && strings.Contains(sym, q):
			factor *= 1.2
		}

		content := strings.ToLower(b.Content)
		if q != "" && strings.Contains(content, q) {
			factor *= 1.1
		}

		matches := 0
		for _, tok := range queryTokens {
			if len(tok) > 2 && strings.Contains(content, tok) {
				matches++
			}
		}
		factor *= 1 + 0.05*float64(matches)

		if r.SemanticScore > 0.8 && r.KeywordScore > 0.5 {
			factor *= 1.15
		}
		if b.Type.IsFunctionLike() {
			factor *= 1.05
		}
		if b.EndLine-b.StartLine+1 > 50 {
			factor *= 0.95
		}

		r.Score *= factor
		if r.Score > 1.0 {
			r.Score = 1.0
		}
	}

	sortByScore(results)
}

func sortByScore(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
