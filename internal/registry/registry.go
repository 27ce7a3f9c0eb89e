package registry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/logging"
	"forma-server/internal/scanner"
	"forma-server/internal/watcher"
)

// Thumbnailer receives asynchronous thumbnail requests.
type Thumbnailer interface {
	Request(assetID int64, filePath string)
}

// Registry owns the per-folder watcher subscriptions and scan cancellation
// tokens.
type Registry struct {
	db          *database.Database
	bus         *events.Bus
	scanner     *scanner.Scanner
	thumbnailer Thumbnailer
	watchOpts   watcher.Options

	mu       sync.Mutex
	watchers map[string]*watcher.Watcher
	scans    map[string]context.CancelFunc
}

// New creates a registry. Call Start to bring up watchers for folders
// already enabled in the catalog.
func New(db *database.Database, bus *events.Bus, sc *scanner.Scanner, thumbnailer Thumbnailer, watchOpts watcher.Options) *Registry {
	return &Registry{
		db:          db,
		bus:         bus,
		scanner:     sc,
		thumbnailer: thumbnailer,
		watchOpts:   watchOpts,
		watchers:    make(map[string]*watcher.Watcher),
		scans:       make(map[string]context.CancelFunc),
	}
}

// Start brings up watchers for every enabled folder in the catalog and runs
// a catch-up scan per folder to pick up files that arrived while the service
// was down. Folders whose path no longer exists are logged and skipped;
// their rows are untouched.
func (r *Registry) Start(ctx context.Context) error {
	folders, err := r.db.GetWatchedFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watched folders: %w", err)
	}

	started := 0
	for _, folder := range folders {
		if !folder.Enabled {
			continue
		}
		if _, err := os.Stat(folder.Path); err != nil {
			logging.Warn("Watched folder %s unavailable, not watching: %v", folder.Path, err)
			continue
		}
		if err := r.startWatcher(folder.ID, folder.Path); err != nil {
			logging.Warn("Failed to watch %s: %v", folder.Path, err)
			continue
		}
		r.startScan(folder.ID, folder.Path, false)
		started++
	}
	logging.Info("Watching %d of %d registered folders", started, len(folders))
	return nil
}

// AddFolder registers a new watched folder, starts its live watcher, and
// kicks off the initial scan in the background. The folder row persists
// even when the initial scan fails; a later rescan can retry.
func (r *Registry) AddFolder(ctx context.Context, path string) (*database.WatchedFolder, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("folder not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	if existing, err := r.db.GetWatchedFolderByPath(ctx, path); err == nil {
		return nil, fmt.Errorf("folder %s is already watched (id %d)", path, existing.ID)
	}

	folder, err := r.db.AddWatchedFolder(ctx, path)
	if err != nil {
		return nil, err
	}

	// Watch before scanning so files arriving mid-scan are not missed; a
	// file both sides see resolves through the path uniqueness constraint.
	if err := r.startWatcher(folder.ID, folder.Path); err != nil {
		logging.Warn("Failed to watch new folder %s: %v", path, err)
	}
	r.startScan(folder.ID, folder.Path, false)

	r.bus.Publish(events.Event{Type: events.TypeFolderUpdated, Payload: folder})
	return folder, nil
}

// RemoveFolder stops the folder's watcher, cancels any running scan, and
// removes the row. Asset removal cascades in the store.
func (r *Registry) RemoveFolder(ctx context.Context, id int64) error {
	folder, err := r.db.GetWatchedFolder(ctx, id)
	if err != nil {
		return err
	}

	r.CancelScan(folder.Path)
	r.stopWatcher(folder.Path)

	if err := r.db.RemoveWatchedFolder(ctx, id); err != nil {
		return err
	}

	r.bus.Publish(events.Event{Type: events.TypeFolderUpdated})
	return nil
}

// SetEnabled toggles a folder. Enabling starts its watcher (a no-op when one
// is already running) and a catch-up scan for files that arrived while the
// folder was disabled; disabling closes the watcher and cancels any running
// scan but leaves catalogued assets untouched.
func (r *Registry) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	folder, err := r.db.GetWatchedFolder(ctx, id)
	if err != nil {
		return err
	}

	if err := r.db.SetFolderEnabled(ctx, id, enabled); err != nil {
		return err
	}

	if enabled {
		if err := r.startWatcher(folder.ID, folder.Path); err != nil {
			logging.Warn("Failed to watch %s on enable: %v", folder.Path, err)
		}
		r.startScan(folder.ID, folder.Path, false)
	} else {
		r.CancelScan(folder.Path)
		r.stopWatcher(folder.Path)
	}

	r.bus.Publish(events.Event{Type: events.TypeFolderUpdated})
	return nil
}

// Rescan purges and rescans a folder in the background. Returns an error
// when a scan for the folder is already running.
func (r *Registry) Rescan(ctx context.Context, id int64) error {
	folder, err := r.db.GetWatchedFolder(ctx, id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	_, running := r.scans[folder.Path]
	r.mu.Unlock()
	if running {
		return fmt.Errorf("scan already in progress for %s", folder.Path)
	}

	r.startScan(folder.ID, folder.Path, true)
	return nil
}

// CancelScan signals the running scan for a folder path to stop at its next
// batch boundary. Returns false when no scan is running.
func (r *Registry) CancelScan(path string) bool {
	r.mu.Lock()
	cancel, ok := r.scans[path]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// ScanActive reports whether a scan is currently running for the path.
func (r *Registry) ScanActive(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.scans[path]
	return ok
}

// Shutdown cancels all running scans and closes all watchers.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for path, cancel := range r.scans {
		cancel()
		delete(r.scans, path)
	}
	watchers := make([]*watcher.Watcher, 0, len(r.watchers))
	for path, w := range r.watchers {
		watchers = append(watchers, w)
		delete(r.watchers, path)
	}
	r.mu.Unlock()

	for _, w := range watchers {
		if err := w.Close(); err != nil {
			logging.Warn("Failed to close watcher for %s: %v", w.FolderPath(), err)
		}
	}
	logging.Info("Folder registry shut down")
}

// startWatcher starts a live watcher for the path unless one already runs.
func (r *Registry) startWatcher(folderID int64, path string) error {
	r.mu.Lock()
	if _, ok := r.watchers[path]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	w, err := watcher.New(r.db, r.bus, watcherThumbnailer(r.thumbnailer), folderID, path, r.watchOpts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.watchers[path]; ok {
		// Lost a start race; keep the first watcher.
		r.mu.Unlock()
		return w.Close()
	}
	r.watchers[path] = w
	r.mu.Unlock()
	return nil
}

func (r *Registry) stopWatcher(path string) {
	r.mu.Lock()
	w, ok := r.watchers[path]
	delete(r.watchers, path)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := w.Close(); err != nil {
		logging.Warn("Failed to close watcher for %s: %v", path, err)
	}
}

// startScan launches a scan in the background and registers its
// cancellation token under the folder path.
func (r *Registry) startScan(folderID int64, path string, rescan bool) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if prev, ok := r.scans[path]; ok {
		prev()
	}
	r.scans[path] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.scans, path)
			r.mu.Unlock()
			cancel()
		}()

		var err error
		if rescan {
			_, err = r.scanner.Rescan(ctx, folderID, path)
		} else {
			_, err = r.scanner.Scan(ctx, folderID, path)
		}
		if err != nil {
			logging.Error("Scan of %s failed: %v", path, err)
		}
	}()
}

// watcherThumbnailer adapts the registry's Thumbnailer to the watcher
// package's interface, preserving nil.
func watcherThumbnailer(t Thumbnailer) watcher.Thumbnailer {
	if t == nil {
		return nil
	}
	return t
}
