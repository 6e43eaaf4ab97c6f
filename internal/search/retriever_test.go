package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheo/syntheo/internal/embedder"
	"github.com/syntheo/syntheo/internal/store"
	"github.com/syntheo/syntheo/internal/vecstore"
	"github.com/syntheo/syntheo/pkg/types"
)

type fixture struct {
	store    *store.Store
	vectors  *vecstore.Store
	embedder embedder.Embedder
	ret      *Retriever
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	vs, err := vecstore.Open(filepath.Join(dir, "vectors.hnsw"), vecstore.Options{Dims: 64}, 0)
	require.NoError(t, err)

	emb := embedder.NewLocal(64, nil)
	return &fixture{
		store:    st,
		vectors:  vs,
		embedder: emb,
		ret:      NewRetriever(st, vs, emb, 100, nil),
	}
}

// index puts a block into all three stores the way the ingestor would.
func (f *fixture) index(t *testing.T, b *types.Block) {
	t.Helper()
	ctx := context.Background()

	vec, err := f.embedder.Embed(ctx, b.Content)
	require.NoError(t, err)

	label := f.vectors.AllocateLabel()
	require.NoError(t, f.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertBlock(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertFTS(ctx, b.ID, b.FilePath, b.Content, b.SymbolName); err != nil {
			return err
		}
		if err := tx.InsertMapping(ctx, label, b.ID); err != nil {
			return err
		}
		return tx.UpsertFile(ctx, &types.FileRecord{
			FilePath: b.FilePath, FileHash: "h-" + b.ID, Language: b.Language,
			LastIndexed: b.UpdatedAt, BlockCount: 1,
		})
	}))
	require.NoError(t, f.vectors.Add(label, vec))
}

func block(id, path, lang, symbol, content string, bt types.BlockType) *types.Block {
	return &types.Block{
		ID: id, FilePath: path, StartLine: 1, EndLine: 3,
		Content: content, ContentHash: "ch-" + id,
		Type: bt, Language: lang, SymbolName: symbol, Tokens: 10,
	}
}

func TestSearch_BothChannelsDisabled(t *testing.T) {
	f := newFixture(t)

	results, err := f.ret.Search(context.Background(), "anything",
		types.SearchOptions{SemanticOnly: true, KeywordOnly: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_KeywordFindsBlock(t *testing.T) {
	f := newFixture(t)
	f.index(t, block("b1", "src/users.ts", "typescript", "getUserById",
		"export function getUserById(id) { return db.users.find(id); }", types.BlockFunctionDeclaration))
	f.index(t, block("b2", "src/orders.ts", "typescript", "listOrders",
		"export function listOrders() { return db.orders.all(); }", types.BlockFunctionDeclaration))

	results, err := f.ret.Search(context.Background(), "user by id",
		types.SearchOptions{Limit: 5, KeywordOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "getUserById", results[0].Block.SymbolName)
	assert.Greater(t, results[0].KeywordScore, 0.0)
	assert.Zero(t, results[0].SemanticScore)
}

func TestSearch_SemanticChannelMatchesIdenticalText(t *testing.T) {
	f := newFixture(t)
	content := "def fetch_user(id):\n    return db.users.get(id)"
	f.index(t, block("b1", "src/b.py", "python", "fetch_user", content, types.BlockFunctionDefinition))

	// The local embedder maps identical text to an identical vector, so
	// querying with the block content itself is a perfect semantic hit.
	results, err := f.ret.Search(context.Background(), content,
		types.SearchOptions{Limit: 5, SemanticOnly: true, MinScore: 0.1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "b1", results[0].Block.ID)
	assert.Greater(t, results[0].SemanticScore, 0.9)
}

func TestSearch_LanguageAndTypeFilters(t *testing.T) {
	f := newFixture(t)
	f.index(t, block("b1", "src/a.ts", "typescript", "tsHandler",
		"export function tsHandler() {}", types.BlockFunctionDeclaration))
	f.index(t, block("b2", "src/b.py", "python", "py_handler",
		"def py_handler():\n    pass", types.BlockFunctionDefinition))

	results, err := f.ret.Search(context.Background(), "handler", types.SearchOptions{
		Limit: 5, Language: "python", BlockType: "function_definition", MinScore: 0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "python", r.Block.Language)
		assert.Equal(t, types.BlockFunctionDefinition, r.Block.Type)
	}

	// Descending score order.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearch_DeletedBlockLabelSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index(t, block("b1", "src/a.ts", "typescript", "fnA",
		"export function fnA() { widget(); }", types.BlockFunctionDeclaration))

	// Remove the catalog and mapping rows but leave the ANN point; the
	// dangling label must be skipped silently.
	require.NoError(t, f.store.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.DeleteBlocksByFile(ctx, "src/a.ts")
		return err
	}))
	f.ret.InvalidateCache()

	results, err := f.ret.Search(ctx, "widget", types.SearchOptions{Limit: 5, MinScore: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_FusionWeightMonotonicity(t *testing.T) {
	f := newFixture(t)
	semContent := "def quiet_block():\n    return calm"
	f.index(t, block("sem", "src/sem.py", "python", "quiet_block", semContent, types.BlockFunctionDefinition))
	f.index(t, block("kw", "src/kw.py", "python", "noisy_block",
		"def noisy_block():\n    return zebra_xylophone", types.BlockFunctionDefinition))

	run := func(ws, wk float64) (semScore, kwScore float64) {
		f.ret.InvalidateCache()
		// The query is the semantic block's exact content: a perfect
		// semantic hit for "sem", while "kw" matches only on shared
		// keywords.
		results, err := f.ret.Search(context.Background(), semContent,
			types.SearchOptions{Limit: 5, MinScore: 0, SemanticWeight: ws, KeywordWeight: wk, Rerank: false})
		require.NoError(t, err)
		for _, r := range results {
			switch r.Block.ID {
			case "sem":
				semScore = r.Score
			case "kw":
				kwScore = r.Score
			}
		}
		return semScore, kwScore
	}

	semLow, kwLow := run(0.5, 0.5)
	semHigh, kwHigh := run(0.9, 0.1)

	// Raising the semantic weight cannot hurt the semantic-heavy hit
	// relative to the keyword-heavy one.
	assert.GreaterOrEqual(t, semHigh-kwHigh, semLow-kwLow)
}

func TestSearch_RecordsStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index(t, block("b1", "src/a.ts", "typescript", "fnA",
		"export function fnA() {}", types.BlockFunctionDeclaration))

	_, err := f.ret.Search(ctx, "fnA", types.SearchOptions{Limit: 5})
	require.NoError(t, err)

	stats, err := f.store.RecentSearchStats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "fnA", stats[0].Query)
	assert.Len(t, stats[0].QueryHash, 16)
}

func TestSearch_CacheHitAvoidsRecomputation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index(t, block("b1", "src/a.ts", "typescript", "fnA",
		"export function fnA() {}", types.BlockFunctionDeclaration))

	opts := types.SearchOptions{Limit: 5}
	first, err := f.ret.Search(ctx, "fnA", opts)
	require.NoError(t, err)
	second, err := f.ret.Search(ctx, "fnA", opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// One stat row: the second call was served from cache.
	stats, err := f.store.RecentSearchStats(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}
