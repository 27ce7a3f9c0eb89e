package main

import (
	"context"
	"path/filepath"
	"testing"

	"forma-server/internal/database"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "forma.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"status", "status"},
		{"clear-thumbnails", "clear-thumbnails"},
		{"evil\ncmd", "evil_cmd"},
		{"rm -rf", "rm__rf"},
	}

	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShowStatus(t *testing.T) {
	db := setupTestDB(t)

	if !showStatus(context.Background(), db) {
		t.Error("showStatus failed on empty catalog")
	}
}

func TestPurgeDeleted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	asset := &database.Asset{Name: "m", FilePath: "/m/a.glb"}
	if err := db.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if err := db.SoftDeleteAsset(ctx, asset.ID); err != nil {
		t.Fatalf("SoftDeleteAsset failed: %v", err)
	}

	if !purgeDeleted(ctx, db) {
		t.Error("purgeDeleted failed")
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.DeletedAssets != 0 {
		t.Errorf("DeletedAssets = %d after purge", stats.DeletedAssets)
	}
}

func TestClearThumbnails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	asset := &database.Asset{Name: "m", FilePath: "/m/a.glb"}
	if err := db.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if err := db.SaveThumbnail(ctx, asset.ID, []byte("x")); err != nil {
		t.Fatalf("SaveThumbnail failed: %v", err)
	}

	if !clearThumbnails(ctx, db) {
		t.Error("clearThumbnails failed")
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Thumbnails != 0 {
		t.Errorf("Thumbnails = %d after clear", stats.Thumbnails)
	}
}
