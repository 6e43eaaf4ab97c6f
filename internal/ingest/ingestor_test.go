package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheo/syntheo/internal/cache"
	"github.com/syntheo/syntheo/internal/config"
	"github.com/syntheo/syntheo/internal/embedder"
	"github.com/syntheo/syntheo/internal/ingest"
	"github.com/syntheo/syntheo/internal/parser"
	"github.com/syntheo/syntheo/internal/scanner"
	"github.com/syntheo/syntheo/internal/search"
	"github.com/syntheo/syntheo/internal/store"
	"github.com/syntheo/syntheo/internal/vecstore"
	"github.com/syntheo/syntheo/pkg/types"
)

// countingEmbedder wraps the local embedder and counts batch calls, so
// tests can assert the change cache prevented re-embedding.
type countingEmbedder struct {
	embedder.Embedder
	batches atomic.Int32
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	return c.Embedder.EmbedBatch(ctx, texts)
}

type pipeline struct {
	workspace string
	store     *store.Store
	vectors   *vecstore.Store
	embedder  *countingEmbedder
	cache     *cache.HashCache
	ingestor  *ingest.Ingestor
	retriever *search.Retriever
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	workspace := t.TempDir()
	dataDir := config.DataDir(workspace)
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	ctx := context.Background()

	cfg := config.Default()
	cfg.Embedder.Provider = "local"
	cfg.Embedder.Dimensions = 64

	st, err := store.Open(ctx, filepath.Join(dataDir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	vs, err := vecstore.Open(filepath.Join(dataDir, "vectors.hnsw"), vecstore.Options{Dims: 64}, 0)
	require.NoError(t, err)

	emb := &countingEmbedder{Embedder: embedder.NewLocal(64, embedder.NewCache(100))}
	hc, err := cache.Load(filepath.Join(dataDir, "file-hashes.json"))
	require.NoError(t, err)

	sc := scanner.New(workspace, cfg.Indexing.MaxFileSize, nil)
	sm := ingest.NewStateManager(dataDir)

	return &pipeline{
		workspace: workspace,
		store:     st,
		vectors:   vs,
		embedder:  emb,
		cache:     hc,
		ingestor:  ingest.New(cfg, sc, hc, parser.New(), emb, st, vs, sm, nil),
		retriever: search.NewRetriever(st, vs, emb, 100, nil),
	}
}

func (p *pipeline) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(p.workspace, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const (
	tsSource = "export function getUserById(id: string) { return db.users.find(id); }\n"
	pySource = "def fetch_user(id):\n    return db.users.get(id)\n"
)

func TestIndexWorkspace_TwoTinyFiles(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	p.write(t, "b.py", pySource)
	ctx := context.Background()

	stats, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.BlocksIndexed)
	assert.Zero(t, stats.FilesFailed)

	status, err := p.ingestor.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalFiles)
	assert.Equal(t, 2, status.TotalBlocks)
	assert.Equal(t, map[string]int{"typescript": 1, "python": 1}, status.Languages)

	// Both functions are retrievable by keyword.
	results, err := p.retriever.Search(ctx, "user", types.SearchOptions{Limit: 10, MinScore: 0, KeywordOnly: true})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	// Exact symbol query puts the TS function first via the symbol boost.
	results, err = p.retriever.Search(ctx, "getUserById", types.SearchOptions{Limit: 10, MinScore: 0, KeywordOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "getUserById", results[0].Block.SymbolName)
}

func TestIndexWorkspace_IdempotentSecondRun(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	ctx := context.Background()

	_, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	firstBatches := p.embedder.batches.Load()
	require.Greater(t, firstBatches, int32(0))

	blocksBefore, err := p.store.BlocksForFile(ctx, "a.ts")
	require.NoError(t, err)

	stats, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, firstBatches, p.embedder.batches.Load(), "no embedder calls on an unchanged workspace")

	blocksAfter, err := p.store.BlocksForFile(ctx, "a.ts")
	require.NoError(t, err)
	require.Len(t, blocksAfter, len(blocksBefore))
	for i := range blocksBefore {
		assert.Equal(t, blocksBefore[i].ID, blocksAfter[i].ID)
	}
}

func TestIndexWorkspace_MtimeBumpWithoutChange(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	ctx := context.Background()

	_, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	batches := p.embedder.batches.Load()

	// Same bytes, newer mtime: the second-chance hash check catches it.
	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(p.workspace, "a.ts"), future, future))

	stats, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, batches, p.embedder.batches.Load())
}

func TestIngestFile_ReplaceOnEdit(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	ctx := context.Background()

	_, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	oldBlocks, err := p.store.BlocksForFile(ctx, "a.ts")
	require.NoError(t, err)
	require.Len(t, oldBlocks, 1)

	// The replacement shares no vocabulary with the old function, so the
	// old query must go dark.
	p.write(t, "a.ts", "export function sendGreeting(name: string) { return mailer.dispatch(name); }\n")
	_, err = p.ingestor.IngestFile(ctx, "a.ts")
	require.NoError(t, err)
	p.retriever.InvalidateCache()

	newBlocks, err := p.store.BlocksForFile(ctx, "a.ts")
	require.NoError(t, err)
	require.Len(t, newBlocks, 1)
	assert.NotEqual(t, oldBlocks[0].ID, newBlocks[0].ID)
	assert.Equal(t, "sendGreeting", newBlocks[0].SymbolName)

	// The old symbol is unfindable, the new one is.
	results, err := p.retriever.Search(ctx, "getUserById", types.SearchOptions{Limit: 10, MinScore: 0, KeywordOnly: true})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = p.retriever.Search(ctx, "sendGreeting", types.SearchOptions{Limit: 10, MinScore: 0, KeywordOnly: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, newBlocks[0].ID, results[0].Block.ID)
}

func TestRemoveFile(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	ctx := context.Background()

	_, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.workspace, "a.ts")))
	require.NoError(t, p.ingestor.RemoveFile(ctx, "a.ts"))
	p.retriever.InvalidateCache()

	blocks, err := p.store.BlocksForFile(ctx, "a.ts")
	require.NoError(t, err)
	assert.Empty(t, blocks)

	results, err := p.retriever.Search(ctx, "getUserById", types.SearchOptions{Limit: 10, MinScore: 0})
	require.NoError(t, err)
	assert.Empty(t, results)

	status, err := p.ingestor.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalFiles)
}

func TestIndexWorkspace_Empty(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	stats, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Zero(t, stats.BlocksIndexed)

	status, err := p.ingestor.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalFiles)
	assert.Zero(t, status.TotalBlocks)
}

func TestIndexWorkspace_NonCodeFileGetsFileBlock(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "notes.md", "# setup\ninstall the dependencies\n")
	ctx := context.Background()

	stats, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	blocks, err := p.store.BlocksForFile(ctx, "notes.md")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, types.BlockFile, blocks[0].Type)
}

func TestIndexWorkspace_PersistsAndRecovers(t *testing.T) {
	p := newPipeline(t)
	p.write(t, "a.ts", tsSource)
	ctx := context.Background()

	_, err := p.ingestor.IndexWorkspace(ctx, false)
	require.NoError(t, err)

	dataDir := config.DataDir(p.workspace)
	for _, name := range []string{"cache.db", "vectors.hnsw", "file-hashes.json", "state.json", "metadata.json"} {
		_, err := os.Stat(filepath.Join(dataDir, name))
		assert.NoError(t, err, name)
	}

	// The label counter recovers as max(label)+1.
	max, err := p.store.MaxLabel(ctx)
	require.NoError(t, err)
	reopened, err := vecstore.Open(filepath.Join(dataDir, "vectors.hnsw"), vecstore.Options{Dims: 64}, max+1)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
	assert.Equal(t, max+1, reopened.AllocateLabel())
}
