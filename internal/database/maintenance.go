package database

import (
	"context"
	"fmt"
)

// Stats summarizes catalog contents.
type Stats struct {
	ActiveAssets  int64
	DeletedAssets int64
	Thumbnails    int64
	Folders       int64
}

// GetStats returns row counts across the catalog tables.
func (d *Database) GetStats(ctx context.Context) (*Stats, error) {
	done := observeQuery("get_stats")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM assets WHERE is_deleted = 0", &stats.ActiveAssets},
		{"SELECT COUNT(*) FROM assets WHERE is_deleted = 1", &stats.DeletedAssets},
		{"SELECT COUNT(*) FROM thumbnails", &stats.Thumbnails},
		{"SELECT COUNT(*) FROM watched_folders", &stats.Folders},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			done(err)
			return nil, fmt.Errorf("failed to count catalog rows: %w", err)
		}
	}

	done(nil)
	return stats, nil
}

// PurgeDeletedAssets permanently removes soft-deleted assets. Their
// thumbnail rows cascade. Returns the number of rows removed.
func (d *Database) PurgeDeletedAssets(ctx context.Context) (int64, error) {
	done := observeQuery("purge_deleted_assets")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM assets WHERE is_deleted = 1")
	if err != nil {
		done(err)
		return 0, err
	}

	purged, err := result.RowsAffected()
	done(err)
	return purged, err
}
