package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/walker"
)

func setupTest(t *testing.T) (*Scanner, *database.Database, *events.Bus) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	return New(db, bus, nil, walker.DefaultOptions()), db, bus
}

func makeFolder(t *testing.T, db *database.Database, path string) *database.WatchedFolder {
	t.Helper()
	folder, err := db.AddWatchedFolder(context.Background(), path)
	if err != nil {
		t.Fatalf("AddWatchedFolder failed: %v", err)
	}
	return folder
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("model-bytes"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestScanFiltersUnsupportedFiles(t *testing.T) {
	s, db, _ := setupTest(t)
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "a.glb"))
	writeFile(t, filepath.Join(root, "b.GLB"))
	writeFile(t, filepath.Join(root, "c.txt"))
	writeFile(t, filepath.Join(root, "sub", "d.obj"))

	folder := makeFolder(t, db, root)

	result, err := s.Scan(context.Background(), folder.ID, root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Created != 3 {
		t.Errorf("Created = %d, want 3 (a.glb, b.GLB, sub/d.obj)", result.Created)
	}

	assets, err := db.GetAllAssets(context.Background())
	if err != nil {
		t.Fatalf("GetAllAssets failed: %v", err)
	}
	if len(assets) != 3 {
		t.Errorf("Catalog holds %d assets, want 3", len(assets))
	}
	for _, a := range assets {
		if a.FolderID == nil || *a.FolderID != folder.ID {
			t.Errorf("Asset %s not linked to folder", a.FilePath)
		}
		if a.FileSize == 0 {
			t.Errorf("Asset %s has no file size", a.FilePath)
		}
	}
}

func TestScanIsIdempotent(t *testing.T) {
	s, db, _ := setupTest(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.glb"))
	writeFile(t, filepath.Join(root, "b.stl"))

	folder := makeFolder(t, db, root)
	ctx := context.Background()

	first, err := s.Scan(ctx, folder.ID, root)
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}
	if first.Created != 2 {
		t.Fatalf("First scan created %d, want 2", first.Created)
	}

	second, err := s.Scan(ctx, folder.ID, root)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("Second scan created %d, want 0", second.Created)
	}
	if second.Skipped != 2 {
		t.Errorf("Second scan skipped %d, want 2", second.Skipped)
	}

	assets, _ := db.GetAllAssets(ctx)
	if len(assets) != 2 {
		t.Errorf("Catalog holds %d assets after double scan, want 2", len(assets))
	}
}

func TestScanMarksFolderScanned(t *testing.T) {
	s, db, _ := setupTest(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.glb"))

	folder := makeFolder(t, db, root)

	if _, err := s.Scan(context.Background(), folder.ID, root); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got, err := db.GetWatchedFolder(context.Background(), folder.ID)
	if err != nil {
		t.Fatalf("GetWatchedFolder failed: %v", err)
	}
	if got.LastScanned == nil {
		t.Error("Completed scan did not set last-scanned time")
	}
}

func TestScanPublishesFinalProgress(t *testing.T) {
	s, db, bus := setupTest(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.glb"))
	writeFile(t, filepath.Join(root, "b.glb"))

	folder := makeFolder(t, db, root)

	ch, cancel := bus.Subscribe()
	defer cancel()

	if _, err := s.Scan(context.Background(), folder.ID, root); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Drain buffered events looking for the terminal snapshot.
	var final *events.ScanProgress
	for _, evt := range drained(ch) {
		if evt.Type == events.TypeScanProgress {
			p := evt.Payload.(events.ScanProgress)
			if p.Done {
				final = &p
			}
		}
	}

	if final == nil {
		t.Fatal("No terminal progress event published")
	}
	if final.Processed != final.TotalFiles {
		t.Errorf("Final event Processed = %d, TotalFiles = %d; must match",
			final.Processed, final.TotalFiles)
	}
	if final.ModelsFound != 2 {
		t.Errorf("Final event ModelsFound = %d, want 2", final.ModelsFound)
	}
}

// drained returns the events currently buffered on ch without blocking.
func drained(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case evt := <-ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestScanCancelledKeepsPartialState(t *testing.T) {
	s, db, _ := setupTest(t)
	root := t.TempDir()
	// More than one batch so a batch boundary exists.
	for i := 0; i < BatchSize+10; i++ {
		writeFile(t, filepath.Join(root, filesafe(i)+".glb"))
	}

	folder := makeFolder(t, db, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Scan(ctx, folder.ID, root)
	if err != nil {
		t.Fatalf("Cancelled scan returned error: %v", err)
	}
	if !result.Cancelled {
		t.Error("Result should report cancellation")
	}

	// A cancelled scan must not record a completion time.
	got, _ := db.GetWatchedFolder(context.Background(), folder.ID)
	if got.LastScanned != nil {
		t.Error("Cancelled scan recorded a last-scanned time")
	}
}

// cancellingThumbnailer cancels the scan context from inside the first
// catalogued file's thumbnail request.
type cancellingThumbnailer struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingThumbnailer) Request(assetID int64, filePath string) {
	c.once.Do(c.cancel)
}

func TestScanCancelMidBatchCommitsBatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(db, events.NewBus(), &cancellingThumbnailer{cancel: cancel}, walker.DefaultOptions())

	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, filesafe(i)+".glb"))
	}
	folder := makeFolder(t, db, root)

	result, err := s.Scan(ctx, folder.ID, root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// The cancellation fires inside the only batch; every insert already
	// started must still commit rather than abort with a context error.
	if result.Created != 5 {
		t.Errorf("Created = %d, want 5", result.Created)
	}
	assets, err := db.GetAllAssets(context.Background())
	if err != nil {
		t.Fatalf("GetAllAssets failed: %v", err)
	}
	if len(assets) != 5 {
		t.Errorf("Catalog has %d assets, want 5", len(assets))
	}
}

func filesafe(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestRescanPurgesBeforeScanning(t *testing.T) {
	s, db, _ := setupTest(t)
	root := t.TempDir()
	keep := filepath.Join(root, "keep.glb")
	gone := filepath.Join(root, "gone.glb")
	writeFile(t, keep)
	writeFile(t, gone)

	folder := makeFolder(t, db, root)
	ctx := context.Background()

	if _, err := s.Scan(ctx, folder.ID, root); err != nil {
		t.Fatalf("Initial scan failed: %v", err)
	}

	// Remove one file on disk, then rescan; its stale asset must disappear.
	if err := os.Remove(gone); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	result, err := s.Rescan(ctx, folder.ID, root)
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("Rescan created %d, want 1", result.Created)
	}

	assets, _ := db.GetAllAssets(ctx)
	if len(assets) != 1 || assets[0].FilePath != keep {
		t.Errorf("Catalog after rescan = %v, want only keep.glb", assets)
	}
}

type recordingThumbnailer struct {
	mu       sync.Mutex
	requests []int64
}

func (r *recordingThumbnailer) Request(assetID int64, filePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, assetID)
}

func TestScanRequestsThumbnails(t *testing.T) {
	_, db, bus := setupTest(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.glb"))
	writeFile(t, filepath.Join(root, "b.obj"))

	rec := &recordingThumbnailer{}
	s := New(db, bus, rec, walker.DefaultOptions())

	folder := makeFolder(t, db, root)
	if _, err := s.Scan(context.Background(), folder.ID, root); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.requests) != 2 {
		t.Errorf("Thumbnailer got %d requests, want 2", len(rec.requests))
	}
}

func TestScanMissingFolder(t *testing.T) {
	s, db, _ := setupTest(t)
	folder := makeFolder(t, db, "/nonexistent-scan-root")

	if _, err := s.Scan(context.Background(), folder.ID, "/nonexistent-scan-root"); err == nil {
		t.Error("Expected error scanning a missing folder")
	}
}
