package database

import (
	"context"
	"database/sql"
	"errors"
)

// SaveThumbnail stores (or replaces) the thumbnail payload for an asset.
// The payload is either an encoded raster image or a placeholder document.
func (d *Database) SaveThumbnail(ctx context.Context, assetID int64, data []byte) error {
	done := observeQuery("save_thumbnail")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO thumbnails (asset_id, data, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(asset_id) DO UPDATE SET
			data = excluded.data,
			updated_at = strftime('%s', 'now')
	`, assetID, data)

	done(err)
	return err
}

// GetThumbnail returns the thumbnail payload for an asset, or ErrNotFound.
func (d *Database) GetThumbnail(ctx context.Context, assetID int64) ([]byte, error) {
	done := observeQuery("get_thumbnail")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	err := d.db.QueryRowContext(ctx,
		"SELECT data FROM thumbnails WHERE asset_id = ?", assetID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		done(ErrNotFound)
		return nil, ErrNotFound
	}

	done(err)
	return data, err
}

// DeleteThumbnail removes the thumbnail row for an asset. Deleting a
// missing thumbnail is not an error.
func (d *Database) DeleteThumbnail(ctx context.Context, assetID int64) error {
	done := observeQuery("delete_thumbnail")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE asset_id = ?", assetID)
	done(err)
	return err
}

// ClearAllThumbnails removes every thumbnail row and returns the count,
// forcing regeneration on next access.
func (d *Database) ClearAllThumbnails(ctx context.Context) (int64, error) {
	done := observeQuery("clear_thumbnails")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM thumbnails")
	if err != nil {
		done(err)
		return 0, err
	}

	cleared, err := result.RowsAffected()
	done(err)
	return cleared, err
}
