package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces rapid writes to the same transcript
const watchDebounce = 500 * time.Millisecond

// watcher is one active filesystem watch over a project's transcripts
type watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	depth  int
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
	timers  map[string]*time.Timer
}

// StartWatching begins a recursive, depth-bounded watch over the
// resolved project directory. New or changed transcripts are re-indexed
// asynchronously; failures are logged, never raised. Only one watch is
// active per indexer; an existing watch is stopped first.
func (ix *Indexer) StartWatching(projectPath string) error {
	dir, err := ix.ResolveProjectDir(projectPath)
	if err != nil {
		return err
	}

	ix.StopWatching()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// fsnotify watches are not recursive; register subdirectories up to
	// the configured depth
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		depth, ok := dirDepth(dir, path)
		if !ok {
			return nil
		}
		if depth > ix.watchDepth {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		fsw:    fsw,
		root:   dir,
		depth:  ix.watchDepth,
		stopCh: make(chan struct{}),
		cancel: cancel,
		logger: ix.logger,
		timers: make(map[string]*time.Timer),
	}

	w.wg.Add(1)
	go w.run(ctx, ix, projectPath)

	ix.mu.Lock()
	ix.watcher = w
	ix.mu.Unlock()

	ix.logger.Info().Str("dir", dir).Str("project", projectPath).Msg("Watching transcripts")
	return nil
}

// StopWatching cancels the active watch. It is idempotent, and no
// reindex callback fires after it returns.
func (ix *Indexer) StopWatching() {
	ix.mu.Lock()
	w := ix.watcher
	ix.watcher = nil
	ix.mu.Unlock()

	if w == nil {
		return
	}

	close(w.stopCh)
	w.cancel()
	w.fsw.Close()

	w.mu.Lock()
	w.stopped = true
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	w.wg.Wait()

	ix.logger.Info().Msg("Stopped watching transcripts")
}

// run processes filesystem events until the watch is stopped
func (w *watcher) run(ctx context.Context, ix *Indexer, projectPath string) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) && w.maybeWatchDir(event.Name) {
				continue
			}

			if !strings.HasSuffix(strings.ToLower(event.Name), ".jsonl") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Transcript change detected")

				w.scheduleReindex(ctx, ix, event.Name, projectPath)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Transcript watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// maybeWatchDir registers a newly created directory within the depth
// bound. Reports whether the path is a directory.
func (w *watcher) maybeWatchDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}

	depth, ok := dirDepth(w.root, path)
	if !ok || depth > w.depth {
		return true
	}

	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn().Err(err).Str("dir", path).Msg("Could not watch new directory")
		return true
	}

	w.logger.Debug().Str("dir", path).Msg("Watching new directory")
	return true
}

// scheduleReindex arms (or re-arms) the per-file debounce timer. Writes
// landing inside the window coalesce into a single reindex.
func (w *watcher) scheduleReindex(ctx context.Context, ix *Indexer, path, projectPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(watchDebounce, func() {
		w.reindex(ctx, ix, path, projectPath)
	})
}

// reindex handles one changed transcript after its debounce window
func (w *watcher) reindex(ctx context.Context, ix *Indexer, path, projectPath string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	if err := ix.indexFile(ctx, path, projectPath); err != nil {
		w.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Watch-triggered reindex failed")
		return
	}

	w.logger.Debug().Str("file", filepath.Base(path)).Msg("Transcript reindexed")
}

// dirDepth reports how many levels below root the directory sits
func dirDepth(root, path string) (int, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0, false
	}
	if rel == "." {
		return 0, true
	}
	return strings.Count(rel, string(filepath.Separator)) + 1, true
}
