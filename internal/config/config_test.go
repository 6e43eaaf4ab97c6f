package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Indexing.BatchSize)
	assert.Equal(t, 4, cfg.Indexing.Concurrency)
	assert.Equal(t, 384, cfg.Indexing.ChunkTokens)
	assert.Equal(t, 50, cfg.Indexing.OverlapTokens)
	assert.Equal(t, int64(1<<20), cfg.Indexing.MaxFileSize)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.InDelta(t, 0.3, cfg.Search.MinScore, 1e-9)
	assert.InDelta(t, 0.7, cfg.Search.HybridWeight.Semantic, 1e-9)
	assert.InDelta(t, 0.3, cfg.Search.HybridWeight.Keyword, 1e-9)
	assert.True(t, cfg.Search.Rerank)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
	assert.Equal(t, 100, cfg.Performance.HNSWEfSearch)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ws := t.TempDir()

	cfg := Default()
	cfg.Embedder.Model = "custom-model"
	cfg.Indexing.Concurrency = 8
	require.NoError(t, cfg.Save(ws))

	loaded, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", loaded.Embedder.Model)
	assert.Equal(t, 8, loaded.Indexing.Concurrency)
}

func TestLoad_SparseFileFillsDefaults(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(ws), 0755))
	require.NoError(t, os.WriteFile(Path(ws), []byte(`{"indexing":{"batchSize":10}}`), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Indexing.BatchSize)
	assert.Equal(t, 4, cfg.Indexing.Concurrency)
	assert.Equal(t, "http", cfg.Embedder.Provider)
}

func TestLoad_MalformedFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(DataDir(ws), 0755))
	require.NoError(t, os.WriteFile(Path(ws), []byte("{not json"), 0644))

	_, err := Load(ws)
	assert.Error(t, err)
}
