package database

import (
	"context"
	"errors"
	"testing"
)

func TestAddAndGetWatchedFolder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	folder := mustAddFolder(t, db, "/library/models")
	if folder.ID == 0 {
		t.Fatal("AddWatchedFolder did not assign an ID")
	}
	if !folder.Enabled {
		t.Error("New folder should be enabled")
	}
	if folder.LastScanned != nil {
		t.Error("New folder should have no last-scanned time")
	}

	got, err := db.GetWatchedFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetWatchedFolder failed: %v", err)
	}
	if got.Path != "/library/models" {
		t.Errorf("Path = %q", got.Path)
	}

	byPath, err := db.GetWatchedFolderByPath(ctx, "/library/models")
	if err != nil {
		t.Fatalf("GetWatchedFolderByPath failed: %v", err)
	}
	if byPath.ID != folder.ID {
		t.Errorf("ID = %d, want %d", byPath.ID, folder.ID)
	}
}

func TestAddWatchedFolderDuplicate(t *testing.T) {
	db := setupTestDB(t)

	mustAddFolder(t, db, "/library/models")

	if _, err := db.AddWatchedFolder(context.Background(), "/library/models"); err == nil {
		t.Error("Expected error adding duplicate folder path")
	}
}

func TestGetWatchedFoldersAssetCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := mustAddFolder(t, db, "/lib/a")
	b := mustAddFolder(t, db, "/lib/b")

	mustCreateAsset(t, db, "/lib/a/one.glb", &a.ID)
	mustCreateAsset(t, db, "/lib/a/two.glb", &a.ID)
	deleted := mustCreateAsset(t, db, "/lib/a/three.glb", &a.ID)
	if err := db.SoftDeleteAsset(ctx, deleted.ID); err != nil {
		t.Fatalf("SoftDeleteAsset failed: %v", err)
	}

	folders, err := db.GetWatchedFolders(ctx)
	if err != nil {
		t.Fatalf("GetWatchedFolders failed: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("Got %d folders, want 2", len(folders))
	}

	// Ordered by path.
	if folders[0].ID != a.ID || folders[1].ID != b.ID {
		t.Fatalf("Folder order wrong: %+v", folders)
	}
	if folders[0].AssetCount != 2 {
		t.Errorf("Folder a AssetCount = %d, want 2 (soft-deleted excluded)", folders[0].AssetCount)
	}
	if folders[1].AssetCount != 0 {
		t.Errorf("Folder b AssetCount = %d, want 0", folders[1].AssetCount)
	}
}

func TestSetFolderEnabled(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	folder := mustAddFolder(t, db, "/lib/toggle")

	if err := db.SetFolderEnabled(ctx, folder.ID, false); err != nil {
		t.Fatalf("SetFolderEnabled failed: %v", err)
	}
	got, err := db.GetWatchedFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetWatchedFolder failed: %v", err)
	}
	if got.Enabled {
		t.Error("Folder should be disabled")
	}

	if err := db.SetFolderEnabled(ctx, 99999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMarkFolderScanned(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	folder := mustAddFolder(t, db, "/lib/scanned")

	if err := db.MarkFolderScanned(ctx, folder.ID); err != nil {
		t.Fatalf("MarkFolderScanned failed: %v", err)
	}

	got, err := db.GetWatchedFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetWatchedFolder failed: %v", err)
	}
	if got.LastScanned == nil {
		t.Error("LastScanned should be set after MarkFolderScanned")
	}
}

func TestRemoveWatchedFolderDeletesAssets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	folder := mustAddFolder(t, db, "/lib/doomed")
	asset := mustCreateAsset(t, db, "/lib/doomed/x.glb", &folder.ID)
	if err := db.SaveThumbnail(ctx, asset.ID, []byte("thumb")); err != nil {
		t.Fatalf("SaveThumbnail failed: %v", err)
	}
	orphan := mustCreateAsset(t, db, "/elsewhere/y.glb", nil)

	if err := db.RemoveWatchedFolder(ctx, folder.ID); err != nil {
		t.Fatalf("RemoveWatchedFolder failed: %v", err)
	}

	if _, err := db.GetWatchedFolder(ctx, folder.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Folder still present after remove: %v", err)
	}
	// Assets in the folder are hard deleted, thumbnails cascade.
	if _, err := db.GetAsset(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Folder asset still present: %v", err)
	}
	if _, err := db.GetThumbnail(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Thumbnail survived folder removal: %v", err)
	}
	// Unrelated assets are untouched.
	if _, err := db.GetAsset(ctx, orphan.ID); err != nil {
		t.Errorf("Unrelated asset lost: %v", err)
	}
}

func TestHardDeleteAssetsForFolder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	folder := mustAddFolder(t, db, "/lib/rescan")
	mustCreateAsset(t, db, "/lib/rescan/a.glb", &folder.ID)
	soft := mustCreateAsset(t, db, "/lib/rescan/b.glb", &folder.ID)
	if err := db.SoftDeleteAsset(ctx, soft.ID); err != nil {
		t.Fatalf("SoftDeleteAsset failed: %v", err)
	}

	count, err := db.HardDeleteAssetsForFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("HardDeleteAssetsForFolder failed: %v", err)
	}
	// Soft-deleted rows are purged too.
	if count != 2 {
		t.Errorf("Deleted %d assets, want 2", count)
	}

	// The folder row itself survives.
	if _, err := db.GetWatchedFolder(ctx, folder.ID); err != nil {
		t.Errorf("Folder should survive asset purge: %v", err)
	}
}
