package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syntheo/syntheo/internal/cache"
	"github.com/syntheo/syntheo/internal/chunker"
	"github.com/syntheo/syntheo/internal/config"
	"github.com/syntheo/syntheo/internal/embedder"
	"github.com/syntheo/syntheo/internal/hasher"
	"github.com/syntheo/syntheo/internal/parser"
	"github.com/syntheo/syntheo/internal/scanner"
	"github.com/syntheo/syntheo/internal/store"
	"github.com/syntheo/syntheo/internal/vecstore"
	"github.com/syntheo/syntheo/pkg/types"
)

// Stats summarizes one indexing run.
type Stats struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	BlocksIndexed int
	Duration      time.Duration
}

// Ingestor orchestrates the per-file pipeline:
// scan -> hash cache -> parse -> chunk -> embed -> stores.
type Ingestor struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	cache    *cache.HashCache
	parser   parser.Parser
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    *store.Store
	vectors  *vecstore.Store
	state    *StateManager
	logger   *slog.Logger
}

// New wires an ingestor over already-opened stores.
func New(cfg *config.Config, sc *scanner.Scanner, hc *cache.HashCache, p parser.Parser,
	emb embedder.Embedder, st *store.Store, vs *vecstore.Store, sm *StateManager, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		cfg:      cfg,
		scanner:  sc,
		cache:    hc,
		parser:   p,
		chunker:  chunker.New(cfg.Indexing.ChunkTokens, chunker.DefaultMaxTokens, cfg.Indexing.OverlapTokens),
		embedder: emb,
		store:    st,
		vectors:  vs,
		state:    sm,
		logger:   logger,
	}
}

// IndexWorkspace ingests the whole tree. With force unset, files whose
// mtime matches the hash cache are skipped before they are even read.
// Per-file errors are logged and counted; the run completes. A dead
// embedder aborts the remaining files but still persists everything
// already ingested.
func (in *Ingestor) IndexWorkspace(ctx context.Context, force bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	paths, err := in.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}

	if !force {
		kept := paths[:0]
		for _, p := range paths {
			mtime, size, err := in.scanner.Stat(p)
			if err != nil {
				continue
			}
			if in.cache.MaybeChanged(p, mtime, size) {
				kept = append(kept, p)
			} else {
				stats.FilesSkipped++
			}
		}
		paths = kept
	}

	in.state.SetState(State{Status: "indexing", LastRun: start.UnixMilli()})

	var indexed, skipped, failed, blocks int32
	var embedderDown atomic.Bool

	batchSize := in.cfg.Indexing.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	runErr := func() error {
		for i := 0; i < len(paths); i += batchSize {
			if ctx.Err() != nil || embedderDown.Load() {
				return ctx.Err()
			}
			end := i + batchSize
			if end > len(paths) {
				end = len(paths)
			}

			g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
			g.SetLimit(in.cfg.Indexing.Concurrency)
			for _, path := range paths[i:end] {
				if embedderDown.Load() {
					break
				}
				g.Go(func() error {
					res, err := in.IngestFile(gctx, path)
					switch {
					case err == nil && res.skipped:
						atomic.AddInt32(&skipped, 1)
					case err == nil:
						atomic.AddInt32(&indexed, 1)
						atomic.AddInt32(&blocks, int32(res.blocks))
					case errors.Is(err, types.ErrEmbedderUnavailable):
						embedderDown.Store(true)
						atomic.AddInt32(&failed, 1)
						in.logger.Error("embedder unavailable, aborting run", "path", path, "error", err)
					default:
						atomic.AddInt32(&failed, 1)
						in.logger.Warn("skipping file", "path", path, "error", err)
					}
					// Per-file failures never abort the batch.
					return nil
				})
			}
			_ = g.Wait()
		}
		return nil
	}()

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped += int(skipped)
	stats.FilesFailed = int(failed)
	stats.BlocksIndexed = int(blocks)
	stats.Duration = time.Since(start)

	status := "idle"
	if embedderDown.Load() {
		status = "error"
	}
	in.state.SetState(State{
		Status:        status,
		LastRun:       start.UnixMilli(),
		FilesIndexed:  stats.FilesIndexed,
		FilesSkipped:  stats.FilesSkipped,
		FilesFailed:   stats.FilesFailed,
		BlocksIndexed: stats.BlocksIndexed,
		DurationMS:    stats.Duration.Milliseconds(),
	})

	if err := in.PersistAll(ctx); err != nil {
		return stats, err
	}
	if embedderDown.Load() {
		return stats, types.ErrEmbedderUnavailable
	}
	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

// fileResult reports one per-file ingest outcome.
type fileResult struct {
	skipped bool
	blocks  int
}

// IngestFile runs the per-file protocol. Either all new blocks land and the
// old ones are gone, or the previous state is preserved.
func (in *Ingestor) IngestFile(ctx context.Context, relPath string) (fileResult, error) {
	abs := in.scanner.Abs(relPath)

	data, err := os.ReadFile(abs)
	if err != nil {
		return fileResult{}, fmt.Errorf("read: %w", err)
	}
	contentHash := hasher.HashBytes(data)

	mtime, size, err := in.scanner.Stat(relPath)
	if err != nil {
		return fileResult{}, fmt.Errorf("stat: %w", err)
	}

	// Second chance: the mtime moved but the bytes did not.
	if in.cache.ConfirmUnchanged(relPath, contentHash) {
		in.cache.Touch(relPath, mtime)
		return fileResult{skipped: true}, nil
	}

	source := string(data)
	language := parser.DetectLanguage(relPath)

	var root *parser.Node
	if language != "" {
		root, err = in.parser.Parse(ctx, data, language)
		switch {
		case errors.Is(err, parser.ErrNoGrammar):
			// Fall through with a nil tree and index the whole file as
			// one block.
			root = nil
		case err != nil:
			return fileResult{}, err
		}
	}

	blocks := in.chunker.Chunk(relPath, source, root, language)

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Content
	}
	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = in.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fileResult{}, err
		}
	}

	// Allocate labels up front so the mapping rows commit with the blocks.
	labels := make([]uint64, len(blocks))
	for i := range blocks {
		labels[i] = in.vectors.AllocateLabel()
	}

	record := &types.FileRecord{
		FilePath:    relPath,
		FileHash:    contentHash,
		Language:    language,
		SizeBytes:   size,
		LineCount:   strings.Count(source, "\n") + 1,
		LastIndexed: time.Now().UnixMilli(),
		BlockCount:  len(blocks),
	}

	var stale []uint64
	err = in.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		stale, err = tx.DeleteBlocksByFile(ctx, relPath)
		if err != nil {
			return err
		}
		for i := range blocks {
			b := &blocks[i]
			if err := tx.InsertBlock(ctx, b); err != nil {
				return err
			}
			if err := tx.InsertFTS(ctx, b.ID, b.FilePath, b.Content, b.SymbolName); err != nil {
				return err
			}
			if err := tx.InsertMapping(ctx, labels[i], b.ID); err != nil {
				return err
			}
		}
		return tx.UpsertFile(ctx, record)
	})
	if err != nil {
		return fileResult{}, fmt.Errorf("commit blocks: %w", err)
	}

	// The ANN is append-only in RAM and outside the transaction; its
	// durability comes from Persist at batch boundaries and shutdown.
	for _, label := range stale {
		in.vectors.Delete(label)
	}
	for i := range blocks {
		if err := in.vectors.Add(labels[i], vectors[i]); err != nil {
			in.logger.Warn("vector insert failed", "path", relPath, "error", err)
		}
	}

	in.cache.Record(relPath, contentHash, mtime, size)
	return fileResult{blocks: len(blocks)}, nil
}

// RemoveFile deletes everything owned by a vanished file.
func (in *Ingestor) RemoveFile(ctx context.Context, relPath string) error {
	var stale []uint64
	err := in.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		stale, err = tx.DeleteBlocksByFile(ctx, relPath)
		if err != nil {
			return err
		}
		return tx.DeleteFile(ctx, relPath)
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", relPath, err)
	}

	for _, label := range stale {
		in.vectors.Delete(label)
	}
	in.cache.Remove(relPath)
	return nil
}

// Status summarizes the indexed workspace from the catalog.
func (in *Ingestor) Status(ctx context.Context) (*types.WorkspaceStatus, error) {
	files, err := in.store.CountFiles(ctx)
	if err != nil {
		return nil, err
	}
	blocks, err := in.store.CountBlocks(ctx)
	if err != nil {
		return nil, err
	}
	languages, err := in.store.LanguageHistogram(ctx)
	if err != nil {
		return nil, err
	}
	return &types.WorkspaceStatus{
		TotalFiles:  files,
		TotalBlocks: blocks,
		Languages:   languages,
		IndexSizeMB: in.store.IndexSizeMB(ctx),
		LastIndexed: in.state.State().LastRun,
	}, nil
}

// PersistAll flushes the ANN index, the hash cache, and the state files.
// Called at the end of every run and on graceful shutdown.
func (in *Ingestor) PersistAll(ctx context.Context) error {
	if err := in.vectors.Persist(); err != nil {
		return fmt.Errorf("persist vectors: %w", err)
	}
	if err := in.cache.Persist(); err != nil {
		return fmt.Errorf("persist hash cache: %w", err)
	}
	summary, err := in.Status(ctx)
	if err != nil {
		summary = nil
	}
	if err := in.state.Persist(summary); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

