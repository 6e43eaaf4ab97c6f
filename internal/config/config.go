package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the per-workspace state directory, relative to the
// workspace root.
const DataDirName = ".syntheo/semantics"

// Config is the persisted configuration, stored as config.json inside the
// workspace data directory.
type Config struct {
	Embedder    EmbedderConfig    `json:"embedder"`
	Indexing    IndexingConfig    `json:"indexing"`
	Search      SearchConfig      `json:"search"`
	Watch       WatchConfig       `json:"watch"`
	Performance PerformanceConfig `json:"performance"`
}

type EmbedderConfig struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	BaseURL    string `json:"baseUrl"`
}

type IndexingConfig struct {
	BatchSize       int      `json:"batchSize"`
	Concurrency     int      `json:"concurrency"`
	ChunkTokens     int      `json:"chunkTokens"`
	OverlapTokens   int      `json:"overlapTokens"`
	MaxFileSize     int64    `json:"maxFileSize"`
	ExcludePatterns []string `json:"excludePatterns"`
}

type SearchConfig struct {
	MaxResults   int          `json:"maxResults"`
	MinScore     float64      `json:"minScore"`
	HybridWeight HybridWeight `json:"hybridWeight"`
	Rerank       bool         `json:"rerank"`
}

type HybridWeight struct {
	Semantic float64 `json:"semantic"`
	Keyword  float64 `json:"keyword"`
}

type WatchConfig struct {
	Enabled    bool     `json:"enabled"`
	DebounceMS int      `json:"debounceMs"`
	Ignored    []string `json:"ignored"`
}

type PerformanceConfig struct {
	HNSWEfSearch int    `json:"hnswEfSearch"`
	CacheSize    int    `json:"cacheSize"`
	LogLevel     string `json:"logLevel"`
}

// Default returns the configuration used when no config.json exists.
func Default() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Provider:   "http",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			BaseURL:    "http://localhost:11434",
		},
		Indexing: IndexingConfig{
			BatchSize:     50,
			Concurrency:   4,
			ChunkTokens:   384,
			OverlapTokens: 50,
			MaxFileSize:   1 << 20,
		},
		Search: SearchConfig{
			MaxResults: 20,
			MinScore:   0.3,
			HybridWeight: HybridWeight{
				Semantic: 0.7,
				Keyword:  0.3,
			},
			Rerank: true,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMS: 500,
		},
		Performance: PerformanceConfig{
			HNSWEfSearch: 100,
			CacheSize:    10000,
			LogLevel:     "info",
		},
	}
}

// DataDir returns the state directory for a workspace.
func DataDir(workspace string) string {
	return filepath.Join(workspace, filepath.FromSlash(DataDirName))
}

// Path returns the config.json path for a workspace.
func Path(workspace string) string {
	return filepath.Join(DataDir(workspace), "config.json")
}

// Load reads the workspace configuration, filling unset fields with
// defaults. A missing file yields the defaults without error.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(workspace))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to config.json, creating the data
// directory if needed.
func (c *Config) Save(workspace string) error {
	if err := os.MkdirAll(DataDir(workspace), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0644)
}

// applyDefaults fills zero values left by a sparse config.json.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = def.Embedder.Provider
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = def.Embedder.Model
	}
	if c.Embedder.Dimensions <= 0 {
		c.Embedder.Dimensions = def.Embedder.Dimensions
	}
	if c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = def.Embedder.BaseURL
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = def.Indexing.BatchSize
	}
	if c.Indexing.Concurrency <= 0 {
		c.Indexing.Concurrency = def.Indexing.Concurrency
	}
	if c.Indexing.ChunkTokens <= 0 {
		c.Indexing.ChunkTokens = def.Indexing.ChunkTokens
	}
	if c.Indexing.OverlapTokens <= 0 {
		c.Indexing.OverlapTokens = def.Indexing.OverlapTokens
	}
	if c.Indexing.MaxFileSize <= 0 {
		c.Indexing.MaxFileSize = def.Indexing.MaxFileSize
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = def.Search.MaxResults
	}
	if c.Search.HybridWeight.Semantic <= 0 && c.Search.HybridWeight.Keyword <= 0 {
		c.Search.HybridWeight = def.Search.HybridWeight
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = def.Watch.DebounceMS
	}
	if c.Performance.HNSWEfSearch <= 0 {
		c.Performance.HNSWEfSearch = def.Performance.HNSWEfSearch
	}
	if c.Performance.CacheSize <= 0 {
		c.Performance.CacheSize = def.Performance.CacheSize
	}
	if c.Performance.LogLevel == "" {
		c.Performance.LogLevel = def.Performance.LogLevel
	}
}
