package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forma-server/internal/logging"
)

const folderColumns = `
	f.id, f.path, f.enabled, f.last_scanned, f.created_at,
	COUNT(CASE WHEN a.is_deleted = 0 THEN 1 END)
`

// AddWatchedFolder persists a new watched root and returns the record.
// The path must be absolute and unique.
func (d *Database) AddWatchedFolder(ctx context.Context, path string) (*WatchedFolder, error) {
	done := observeQuery("add_folder")

	var id int64
	err := func() error {
		d.mu.Lock()
		defer d.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		result, err := d.db.ExecContext(ctx,
			"INSERT INTO watched_folders (path, enabled) VALUES (?, 1)", path,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("folder already watched: %s", path)
			}
			return err
		}
		id, _ = result.LastInsertId()
		return nil
	}()
	if err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return d.GetWatchedFolder(ctx, id)
}

// GetWatchedFolder returns a folder by ID with its derived asset count.
func (d *Database) GetWatchedFolder(ctx context.Context, id int64) (*WatchedFolder, error) {
	done := observeQuery("get_folder")
	folder, err := d.queryFolder(ctx, "f.id = ?", id)
	done(err)
	return folder, err
}

// GetWatchedFolderByPath returns a folder by its path.
func (d *Database) GetWatchedFolderByPath(ctx context.Context, path string) (*WatchedFolder, error) {
	done := observeQuery("get_folder_by_path")
	folder, err := d.queryFolder(ctx, "f.path = ?", path)
	done(err)
	return folder, err
}

// GetWatchedFolders returns all watched folders ordered by path, each with
// its count of non-deleted assets.
func (d *Database) GetWatchedFolders(ctx context.Context) ([]WatchedFolder, error) {
	done := observeQuery("list_folders")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+folderColumns+`
		FROM watched_folders f
		LEFT JOIN assets a ON a.folder_id = f.id
		GROUP BY f.id
		ORDER BY f.path
	`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close folder rows: %v", closeErr)
		}
	}()

	var folders []WatchedFolder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		folders = append(folders, *folder)
	}

	err = rows.Err()
	done(err)
	return folders, err
}

// SetFolderEnabled toggles a folder's enabled flag.
func (d *Database) SetFolderEnabled(ctx context.Context, id int64, enabled bool) error {
	done := observeQuery("update_folder")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	flag := 0
	if enabled {
		flag = 1
	}

	result, err := d.db.ExecContext(ctx,
		"UPDATE watched_folders SET enabled = ? WHERE id = ?", flag, id,
	)
	if err != nil {
		done(err)
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		done(ErrNotFound)
		return ErrNotFound
	}

	done(nil)
	return nil
}

// MarkFolderScanned records a completed scan timestamp.
func (d *Database) MarkFolderScanned(ctx context.Context, id int64) error {
	done := observeQuery("mark_folder_scanned")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"UPDATE watched_folders SET last_scanned = strftime('%s', 'now') WHERE id = ?", id,
	)
	done(err)
	return err
}

// RemoveWatchedFolder permanently removes a folder and every asset that
// referenced it, in one transaction. Thumbnails cascade with their assets.
func (d *Database) RemoveWatchedFolder(ctx context.Context, id int64) error {
	done := observeQuery("remove_folder")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}

	err = func() error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE folder_id = ?", id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM watched_folders WHERE id = ?", id)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	}()
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("rollback failed after folder removal error: %v", rbErr)
		}
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

func (d *Database) queryFolder(ctx context.Context, where string, arg interface{}) (*WatchedFolder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT `+folderColumns+`
		FROM watched_folders f
		LEFT JOIN assets a ON a.folder_id = f.id
		WHERE `+where+`
		GROUP BY f.id
	`, arg)

	return scanFolder(row)
}

func scanFolder(row rowScanner) (*WatchedFolder, error) {
	var folder WatchedFolder
	var enabled int
	var lastScanned sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&folder.ID, &folder.Path, &enabled, &lastScanned, &createdAt,
		&folder.AssetCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	folder.Enabled = enabled != 0
	if lastScanned.Valid {
		ts := time.Unix(lastScanned.Int64, 0)
		folder.LastScanned = &ts
	}
	folder.CreatedAt = time.Unix(createdAt, 0)

	return &folder, nil
}
