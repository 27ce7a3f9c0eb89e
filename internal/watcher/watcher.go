package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/logging"
	"forma-server/internal/metrics"
	"forma-server/internal/modeltypes"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before it is catalogued.
// Large model files arrive in bursts of writes; acting on the first write
// would catalog a half-copied file.
const DefaultDebounce = 2 * time.Second

const dbTimeout = 5 * time.Second

// Thumbnailer receives asynchronous thumbnail requests.
type Thumbnailer interface {
	Request(assetID int64, filePath string)
}

// Options configures a folder watcher.
type Options struct {
	// Debounce overrides the write-settle delay (0 = DefaultDebounce).
	Debounce time.Duration
	// IncludeHidden processes dot-prefixed files and directories.
	IncludeHidden bool
}

// Watcher mirrors one watched folder's filesystem changes into the catalog.
type Watcher struct {
	folderID    int64
	folderPath  string
	opts        Options
	db          *database.Database
	bus         *events.Bus
	thumbnailer Thumbnailer

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	wg sync.WaitGroup
}

// New starts watching folderPath recursively. The watcher runs until Close.
func New(db *database.Database, bus *events.Bus, thumbnailer Thumbnailer, folderID int64, folderPath string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher for %s: %w", folderPath, err)
	}

	w := &Watcher{
		folderID:    folderID,
		folderPath:  folderPath,
		opts:        opts,
		db:          db,
		bus:         bus,
		thumbnailer: thumbnailer,
		fsw:         fsw,
		pending:     make(map[string]*time.Timer),
	}

	count := w.addTree(folderPath)
	if count == 0 {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch any directory under %s", folderPath)
	}
	logging.Debug("Watching %d directories under %s", count, folderPath)

	w.wg.Add(1)
	go w.run()

	metrics.WatchersActive.Inc()
	return w, nil
}

// Close stops the watcher and cancels any pending debounced changes.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	metrics.WatchersActive.Dec()
	return err
}

// FolderPath returns the watched folder root.
func (w *Watcher) FolderPath() string {
	return w.folderPath
}

// addTree registers dir and every non-hidden subdirectory with the
// underlying watcher, returning how many were added.
func (w *Watcher) addTree(dir string) int {
	count := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("Watcher skipping %s: %v", path, err)
			metrics.WatcherErrors.Inc()
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && !w.opts.IncludeHidden && modeltypes.IsHidden(path) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("Failed to watch %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("Failed to walk %s for watching: %v", dir, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error on %s: %v", w.folderPath, err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.opts.IncludeHidden && hasHiddenComponent(w.folderPath, event.Name) {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handleGone(event.Name)

	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.handleNewDirectory(event.Name)
			return
		}
		w.debounce(event.Name)

	case event.Op&fsnotify.Write != 0:
		w.debounce(event.Name)
	}
}

// handleNewDirectory starts watching a directory created inside the tree and
// debounces any files that arrived with it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.addTree(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		w.debounce(filepath.Join(dir, name))
	}
}

// debounce (re)arms the settle timer for a changed file. Only supported
// model files are tracked.
func (w *Watcher) debounce(path string) {
	if !modeltypes.IsSupported(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.settle(path)
		}
	})
}

// settle catalogs a file once its write burst has gone quiet.
func (w *Watcher) settle(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	info, err := os.Stat(path)
	if err != nil {
		// Gone again before it settled.
		w.handleGone(path)
		return
	}

	existing, err := w.db.GetAssetByPath(ctx, path)
	if err == nil {
		if err := w.db.TouchAssetFile(ctx, path, info.Size()); err != nil {
			logging.Warn("Failed to update changed file %s: %v", path, err)
			return
		}
		logging.Debug("File changed: %s", path)
		w.bus.Publish(events.Event{Type: events.TypeAssetUpdated, Payload: existing})
		if w.thumbnailer != nil {
			w.thumbnailer.Request(existing.ID, path)
		}
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		logging.Warn("Failed to look up %s: %v", path, err)
		return
	}

	asset := &database.Asset{
		Name:     modeltypes.DisplayName(path),
		FilePath: path,
		FileSize: info.Size(),
		FolderID: &w.folderID,
	}
	if err := w.db.CreateAsset(ctx, asset); err != nil {
		if !errors.Is(err, database.ErrAssetExists) {
			logging.Warn("Failed to catalog new file %s: %v", path, err)
		}
		return
	}

	logging.Info("New model catalogued: %s", path)
	w.bus.Publish(events.Event{Type: events.TypeAssetAdded, Payload: asset})
	if w.thumbnailer != nil {
		w.thumbnailer.Request(asset.ID, path)
	}
}

// handleGone soft-deletes the asset backing a removed or renamed-away file.
func (w *Watcher) handleGone(path string) {
	if !modeltypes.IsSupported(path) {
		return
	}

	w.mu.Lock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if err := w.db.SoftDeleteAssetByPath(ctx, path); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn("Failed to mark %s deleted: %v", path, err)
		}
		return
	}
	logging.Info("Model removed: %s", path)
	w.bus.Publish(events.Event{Type: events.TypeAssetRemoved, Payload: map[string]string{"filePath": path}})
}

// hasHiddenComponent reports whether path has a dot-prefixed element below root.
func hasHiddenComponent(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
