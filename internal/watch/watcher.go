package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syntheo/syntheo/internal/scanner"
)

// stabilityWindow is how long a file must sit unmodified before it is
// ingested, so half-written files are not embedded.
const stabilityWindow = 200 * time.Millisecond

// Handler receives debounced per-file events.
type Handler interface {
	FileChanged(ctx context.Context, relPath string)
	FileRemoved(ctx context.Context, relPath string)
}

// Watcher is a debounced filesystem-change source. Each add/change/unlink
// on a candidate file restarts that path's timer; the handler runs only
// after the path goes quiet for the debounce interval.
type Watcher struct {
	root     string
	scanner  *scanner.Scanner
	handler  Handler
	debounce time.Duration
	ignored  []string
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a watcher over the workspace root.
func New(root string, sc *scanner.Scanner, handler Handler, debounce time.Duration, ignored []string, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		scanner:  sc,
		handler:  handler,
		debounce: debounce,
		ignored:  ignored,
		logger:   logger,
		fsw:      fsw,
		timers:   make(map[string]*time.Timer),
		closed:   make(chan struct{}),
	}

	if err := w.addExistingDirs(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the watcher and cancels pending timers.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	return w.fsw.Close()
}

// Run pumps events until the context ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addExistingDirs() error {
	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p == w.root {
			return w.fsw.Add(p)
		}

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.ignoredDir(rel, d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func (w *Watcher) ignoredDir(rel, name string) bool {
	if w.scanner.SkipDir(name) {
		return true
	}
	for _, pattern := range w.ignored {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok {
		return
	}

	// New directories are watched as they appear.
	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if !w.ignoredDir(rel, filepath.Base(rel)) {
				_ = w.fsw.Add(ev.Name)
			}
			return
		}
	}

	if !w.scanner.Candidate(rel) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.schedule(ctx, rel)
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.schedule(ctx, rel)
	}
}

// schedule restarts the per-path debounce timer. The watcher never fires a
// path while an earlier timer for it is still pending; the restart extends
// the quiet period instead.
func (w *Watcher) schedule(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.closed:
		return
	default:
	}

	if t, ok := w.timers[rel]; ok {
		t.Stop()
	}
	w.timers[rel] = time.AfterFunc(w.debounce, func() {
		w.fire(ctx, rel)
	})
}

// fire dispatches one quiesced path. A file still being written (modified
// inside the stability window) is pushed back instead of ingested.
func (w *Watcher) fire(ctx context.Context, rel string) {
	select {
	case <-w.closed:
		return
	case <-ctx.Done():
		return
	default:
	}

	mtimeMS, _, err := w.scanner.Stat(rel)
	if err != nil {
		// Gone: an unlink.
		w.clearTimer(rel)
		w.handler.FileRemoved(ctx, rel)
		return
	}

	if age := time.Since(time.UnixMilli(mtimeMS)); age < stabilityWindow {
		w.mu.Lock()
		w.timers[rel] = time.AfterFunc(stabilityWindow-age, func() {
			w.fire(ctx, rel)
		})
		w.mu.Unlock()
		return
	}

	w.clearTimer(rel)
	w.handler.FileChanged(ctx, rel)
}

func (w *Watcher) clearTimer(rel string) {
	w.mu.Lock()
	delete(w.timers, rel)
	w.mu.Unlock()
}

func (w *Watcher) toRel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, filepath.Clean(abs))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
