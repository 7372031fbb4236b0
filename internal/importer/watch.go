package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period a Watcher waits for before it reports
// a burst of changes.
const DefaultDebounce = 500 * time.Millisecond

// ChangeHandler receives the deduplicated audio paths touched since the
// last call. A returned error is logged and watching continues.
type ChangeHandler func(ctx context.Context, paths []string) error

// Watcher reports audio file changes under a directory tree. Hidden
// directories are not watched. New subdirectories are picked up as they
// appear.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher starts watching root recursively. Call Run to process events
// and Close to release the watch descriptors.
func NewWatcher(root string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, debounce: debounce, logger: logger, fsw: fsw}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run blocks until ctx is done or the watcher is closed, calling handle
// once per debounce window that saw audio changes. Pending changes are
// dropped on cancellation.
func (w *Watcher) Run(ctx context.Context, handle ChangeHandler) error {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("watch: cannot add directory", "path", ev.Name, "error", err)
					}
					// Files copied in with the directory produce no events.
					pending[ev.Name] = true
				}
			}
			if !IsAudioFile(ev.Name) && !pending[ev.Name] {
				continue
			}
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: fsnotify error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Debug("watch: changes settled", "root", w.root, "paths", len(paths))
			if err := handle(ctx, paths); err != nil {
				w.logger.Error("watch: change handler failed", "root", w.root, "error", err)
			}
		}
	}
}
