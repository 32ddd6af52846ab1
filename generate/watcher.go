package generate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates ProjectCache entries when files under a watched
// root change. Every cached project containing the changed path is dropped.
type Watcher struct {
	cache   *ProjectCache
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	roots map[string]bool

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewWatcher starts an event loop feeding cache invalidations.
func NewWatcher(cache *ProjectCache) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		cache:   cache,
		watcher: fw,
		roots:   make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers root and its non-ignored subdirectories. Watching the
// same root twice is a no-op.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)

	w.mu.Lock()
	if w.roots[root] {
		w.mu.Unlock()
		return nil
	}
	w.roots[root] = true
	w.mu.Unlock()

	return w.addTree(root)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.cache.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("watch failed", "path", path, "error", err)
		}
		return nil
	})
}

// rootFor returns the watched project containing path.
func (w *Watcher) rootFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for root := range w.roots {
		if (path == root || strings.HasPrefix(path, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	root, ok := w.rootFor(event.Name)
	if !ok {
		return
	}
	if w.cache.ignored(filepath.Base(event.Name)) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Debug("watch new directory failed", "path", event.Name, "error", err)
			}
		}
	}

	slog.Debug("project changed", "root", root, "path", event.Name, "op", event.Op.String())
	w.cache.InvalidatePath(event.Name)
}

// Close stops the event loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}
