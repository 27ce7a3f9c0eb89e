package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"forma-server/internal/logging"
	"forma-server/internal/metrics"
)

const (
	// DefaultConcurrency bounds how many subdirectories are descended at once.
	DefaultConcurrency = 5
	// DefaultMaxDepth bounds recursion below the walk root.
	DefaultMaxDepth = 99
)

// Options configures a directory walk.
type Options struct {
	// MaxDepth is the maximum recursion depth below the root. 0 walks the
	// root only; negative values mean DefaultMaxDepth.
	MaxDepth int
	// IncludeHidden includes dot-prefixed files and directories.
	IncludeHidden bool
	// Concurrency is the subdirectory descent ceiling (0 = DefaultConcurrency).
	Concurrency int
}

// DefaultOptions returns the walk configuration used by the scan engine.
func DefaultOptions() Options {
	return Options{
		MaxDepth:    DefaultMaxDepth,
		Concurrency: DefaultConcurrency,
	}
}

type walker struct {
	opts Options

	mu    sync.Mutex
	files []string
}

// Walk traverses the tree rooted at root and returns the absolute paths of
// all regular files found. An unreadable root is an error; unreadable
// subdirectories are logged, counted, and skipped. When ctx is cancelled the
// walk stops descending and returns the files collected so far with a nil
// error.
func Walk(ctx context.Context, root string, opts Options) ([]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat walk root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("walk root %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read walk root %s: %w", root, err)
	}
	metrics.WalkerDirectoriesRead.Inc()

	w := &walker{opts: opts}
	w.walkEntries(ctx, root, entries, 0)

	return w.files, nil
}

// walkEntries processes one directory's entries: files are collected
// immediately, then subdirectories are descended in chunks of at most
// Concurrency goroutines.
func (w *walker) walkEntries(ctx context.Context, dir string, entries []os.DirEntry, depth int) {
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			metrics.WalkerEntriesSkipped.WithLabelValues("hidden").Inc()
			continue
		}

		full := filepath.Join(dir, name)
		if entry.IsDir() {
			subdirs = append(subdirs, full)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		w.mu.Lock()
		w.files = append(w.files, full)
		w.mu.Unlock()
	}

	if len(subdirs) == 0 {
		return
	}
	if depth+1 > w.opts.MaxDepth {
		logging.Debug("Max depth %d reached at %s, skipping %d subdirectories",
			w.opts.MaxDepth, dir, len(subdirs))
		metrics.WalkerEntriesSkipped.WithLabelValues("depth").Add(float64(len(subdirs)))
		return
	}

	for start := 0; start < len(subdirs); start += w.opts.Concurrency {
		if ctx.Err() != nil {
			return
		}

		end := start + w.opts.Concurrency
		if end > len(subdirs) {
			end = len(subdirs)
		}

		var wg sync.WaitGroup
		for _, sub := range subdirs[start:end] {
			wg.Add(1)
			go func(sub string) {
				defer wg.Done()
				w.walkDir(ctx, sub, depth+1)
			}(sub)
		}
		wg.Wait()
	}
}

func (w *walker) walkDir(ctx context.Context, dir string, depth int) {
	if ctx.Err() != nil {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("Skipping unreadable directory %s: %v", dir, err)
		metrics.WalkerEntriesSkipped.WithLabelValues("unreadable").Inc()
		return
	}
	metrics.WalkerDirectoriesRead.Inc()

	w.walkEntries(ctx, dir, entries, depth)
}
