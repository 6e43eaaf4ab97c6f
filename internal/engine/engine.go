// Package engine assembles the search engine over one workspace: the
// metadata store, the ANN index, the embedder, the ingestor, and the
// retriever, all rooted at <workspace>/.syntheo/semantics.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/syntheo/syntheo/internal/cache"
	"github.com/syntheo/syntheo/internal/config"
	"github.com/syntheo/syntheo/internal/embedder"
	"github.com/syntheo/syntheo/internal/ingest"
	"github.com/syntheo/syntheo/internal/parser"
	"github.com/syntheo/syntheo/internal/scanner"
	"github.com/syntheo/syntheo/internal/search"
	"github.com/syntheo/syntheo/internal/store"
	"github.com/syntheo/syntheo/internal/vecstore"
	"github.com/syntheo/syntheo/internal/watch"
)

// Engine holds the wired components for one workspace.
type Engine struct {
	Workspace string
	Config    *config.Config

	Store     *store.Store
	Vectors   *vecstore.Store
	Embedder  embedder.Embedder
	Ingestor  *ingest.Ingestor
	Retriever *search.Retriever
	Scanner   *scanner.Scanner

	hashCache *cache.HashCache
	state     *ingest.StateManager
	logger    *slog.Logger
}

// Open loads configuration and opens every store for the workspace. A
// corrupt store refuses to open; the operator must run clear.
func Open(ctx context.Context, workspace string) (*Engine, error) {
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}

	dataDir := config.DataDir(workspace)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := newLogger(cfg.Performance.LogLevel)

	st, err := store.Open(ctx, filepath.Join(dataDir, "cache.db"))
	if err != nil {
		return nil, err
	}

	// Recover the label counter from the durable mapping.
	nextLabel := uint64(0)
	if n, err := st.CountMappings(ctx); err == nil && n > 0 {
		max, err := st.MaxLabel(ctx)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		nextLabel = max + 1
	}

	vs, err := vecstore.Open(filepath.Join(dataDir, "vectors.hnsw"), vecstore.Options{
		Dims:     cfg.Embedder.Dimensions,
		M:        vecstore.DefaultM,
		EfSearch: cfg.Performance.HNSWEfSearch,
	}, nextLabel)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	emb, err := embedder.New(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	hc, err := cache.Load(filepath.Join(dataDir, "file-hashes.json"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sc := scanner.New(workspace, cfg.Indexing.MaxFileSize, cfg.Indexing.ExcludePatterns)
	sm := ingest.NewStateManager(dataDir)
	ing := ingest.New(cfg, sc, hc, parser.New(), emb, st, vs, sm, logger)

	return &Engine{
		Workspace: workspace,
		Config:    cfg,
		Store:     st,
		Vectors:   vs,
		Embedder:  emb,
		Ingestor:  ing,
		Retriever: search.NewRetriever(st, vs, emb, cfg.Performance.HNSWEfSearch, logger),
		Scanner:   sc,
		hashCache: hc,
		state:     sm,
		logger:    logger,
	}, nil
}

// Close persists all mutable state and releases resources.
func (e *Engine) Close(ctx context.Context) error {
	persistErr := e.Ingestor.PersistAll(ctx)
	_ = e.Embedder.Dispose()
	if err := e.Store.Close(); err != nil {
		return err
	}
	return persistErr
}

// Index runs a full workspace ingest and drops stale query cache entries.
func (e *Engine) Index(ctx context.Context, force bool) (*ingest.Stats, error) {
	stats, err := e.Ingestor.IndexWorkspace(ctx, force)
	e.Retriever.InvalidateCache()
	return stats, err
}

// NewWatcher builds the debounced watcher feeding the ingestor.
func (e *Engine) NewWatcher() (*watch.Watcher, error) {
	return watch.New(
		e.Workspace,
		e.Scanner,
		&watchHandler{engine: e},
		time.Duration(e.Config.Watch.DebounceMS)*time.Millisecond,
		e.Config.Watch.Ignored,
		e.logger,
	)
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// watchHandler routes debounced events into the per-file protocol.
type watchHandler struct {
	engine *Engine
}

func (h *watchHandler) FileChanged(ctx context.Context, rel string) {
	e := h.engine
	if _, err := e.Ingestor.IngestFile(ctx, rel); err != nil {
		e.logger.Warn("watch ingest failed", "path", rel, "error", err)
		return
	}
	e.Retriever.InvalidateCache()
	if err := e.Ingestor.PersistAll(ctx); err != nil {
		e.logger.Warn("persist after watch ingest", "error", err)
	}
	e.logger.Info("re-indexed", "path", rel)
}

func (h *watchHandler) FileRemoved(ctx context.Context, rel string) {
	e := h.engine
	if err := e.Ingestor.RemoveFile(ctx, rel); err != nil {
		e.logger.Warn("watch remove failed", "path", rel, "error", err)
		return
	}
	e.Retriever.InvalidateCache()
	if err := e.Ingestor.PersistAll(ctx); err != nil {
		e.logger.Warn("persist after watch remove", "error", err)
	}
	e.logger.Info("removed from index", "path", rel)
}

// Clear wipes the on-disk index state for a workspace, keeping config.json.
// This is the only sanctioned recovery from a corrupt store.
func Clear(workspace string) error {
	dataDir := config.DataDir(workspace)
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.Name() == "config.json" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// stderr: stdout stays clean for results and the MCP transport.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
