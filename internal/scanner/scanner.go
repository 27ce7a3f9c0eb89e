package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/logging"
	"forma-server/internal/metrics"
	"forma-server/internal/modeltypes"
	"forma-server/internal/walker"
)

const (
	// BatchSize is the number of files committed concurrently per batch.
	BatchSize = 50
	// progressInterval throttles progress events during a scan.
	progressInterval = 100 * time.Millisecond
)

// Thumbnailer receives asynchronous thumbnail requests for new assets.
type Thumbnailer interface {
	Request(assetID int64, filePath string)
}

// Scanner runs full folder scans against the catalog.
type Scanner struct {
	db          *database.Database
	bus         *events.Bus
	thumbnailer Thumbnailer
	walkOpts    walker.Options
}

// New creates a scanner. thumbnailer may be nil to disable thumbnail
// generation during scans.
func New(db *database.Database, bus *events.Bus, thumbnailer Thumbnailer, walkOpts walker.Options) *Scanner {
	return &Scanner{
		db:          db,
		bus:         bus,
		thumbnailer: thumbnailer,
		walkOpts:    walkOpts,
	}
}

// Result summarizes a completed scan.
type Result struct {
	TotalFiles  int
	ModelsFound int
	Created     int
	Skipped     int
	Cancelled   bool
	Duration    time.Duration
}

// Scan walks folderPath, catalogues every supported model file not yet
// present, and streams progress on the event bus. Files already catalogued
// are skipped. When ctx is cancelled the scan stops at the next batch
// boundary, keeps everything committed so far, and returns a Result with
// Cancelled set and a nil error.
func (s *Scanner) Scan(ctx context.Context, folderID int64, folderPath string) (*Result, error) {
	start := time.Now()
	metrics.ScansActive.Inc()
	defer metrics.ScansActive.Dec()

	logging.Info("Starting scan of folder %d (%s)", folderID, folderPath)

	files, err := walker.Walk(ctx, folderPath, s.walkOpts)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scan of %s failed: %w", folderPath, err)
	}

	var candidates []string
	for _, f := range files {
		if modeltypes.IsSupported(f) {
			candidates = append(candidates, f)
		} else {
			metrics.ScanFilesSkipped.WithLabelValues("unsupported").Inc()
		}
	}

	result := &Result{TotalFiles: len(files), ModelsFound: len(candidates)}
	progress := events.ScanProgress{
		FolderID:   folderID,
		FolderPath: folderPath,
		TotalFiles: len(candidates),
	}

	var created, skipped atomic.Int64
	lastEvent := time.Time{}

	// Cancellation takes effect at batch boundaries only; writes inside a
	// started batch run to completion on a detached context so they are not
	// aborted mid-insert. The store applies its own per-query timeout.
	writeCtx := context.WithoutCancel(ctx)

	for batchStart := 0; batchStart < len(candidates); batchStart += BatchSize {
		if ctx.Err() != nil {
			logging.Info("Scan of folder %d cancelled after %d/%d files",
				folderID, batchStart, len(candidates))
			result.Cancelled = true
			result.Created = int(created.Load())
			result.Skipped = int(skipped.Load())
			result.Duration = time.Since(start)
			metrics.ScansTotal.WithLabelValues("cancelled").Inc()
			return result, nil
		}

		batchEnd := batchStart + BatchSize
		if batchEnd > len(candidates) {
			batchEnd = len(candidates)
		}

		var wg sync.WaitGroup
		for _, path := range candidates[batchStart:batchEnd] {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if s.catalogFile(writeCtx, folderID, path) {
					created.Add(1)
				} else {
					skipped.Add(1)
				}
			}(path)
		}
		wg.Wait()

		progress.Processed = batchEnd
		progress.CurrentFile = candidates[batchEnd-1]
		progress.ModelsFound = int(created.Load())
		if time.Since(lastEvent) >= progressInterval {
			s.bus.PublishProgress(progress)
			lastEvent = time.Now()
		}
	}

	result.Created = int(created.Load())
	result.Skipped = int(skipped.Load())
	result.Duration = time.Since(start)

	if err := s.db.MarkFolderScanned(writeCtx, folderID); err != nil {
		logging.Warn("Failed to record scan time for folder %d: %v", folderID, err)
	}

	// The final snapshot is always published regardless of throttling.
	progress.Processed = len(candidates)
	progress.CurrentFile = ""
	progress.ModelsFound = result.Created
	progress.Done = true
	s.bus.PublishProgress(progress)
	s.bus.Publish(events.Event{Type: events.TypeFolderUpdated})

	metrics.ScansTotal.WithLabelValues("completed").Inc()
	metrics.ScanDuration.Observe(result.Duration.Seconds())

	logging.Info("Scan of folder %d complete: %d models catalogued, %d skipped in %v",
		folderID, result.Created, result.Skipped, result.Duration)
	return result, nil
}

// Rescan purges all catalogued assets for the folder and scans it from
// scratch. Thumbnails go with the purged assets.
func (s *Scanner) Rescan(ctx context.Context, folderID int64, folderPath string) (*Result, error) {
	purged, err := s.db.HardDeleteAssetsForFolder(ctx, folderID)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to purge folder %d before rescan: %w", folderID, err)
	}
	logging.Info("Rescan purged %d assets from folder %d", purged, folderID)

	return s.Scan(ctx, folderID, folderPath)
}

// catalogFile inserts one model file as a new asset. Returns true when a new
// asset was created, false when the file was skipped.
func (s *Scanner) catalogFile(ctx context.Context, folderID int64, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		logging.Warn("Skipping unreadable file %s: %v", path, err)
		metrics.ScanFilesSkipped.WithLabelValues("error").Inc()
		return false
	}

	asset := &database.Asset{
		Name:     modeltypes.DisplayName(filepath.Base(path)),
		FilePath: path,
		FileSize: info.Size(),
		FolderID: &folderID,
	}

	if err := s.db.CreateAsset(ctx, asset); err != nil {
		if errors.Is(err, database.ErrAssetExists) {
			metrics.ScanFilesSkipped.WithLabelValues("exists").Inc()
			return false
		}
		logging.Warn("Failed to catalog %s: %v", path, err)
		metrics.ScanFilesSkipped.WithLabelValues("error").Inc()
		return false
	}

	metrics.ScanAssetsCreated.Inc()
	s.bus.Publish(events.Event{Type: events.TypeAssetAdded, Payload: asset})

	if s.thumbnailer != nil {
		s.thumbnailer.Request(asset.ID, path)
	}
	return true
}
