package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"

	"forma-server/internal/logging"
)

// assetColumns is the shared select list for asset queries. hasThumbnail is
// derived so the UI can show placeholders without fetching blobs.
const assetColumns = `
	a.id, a.name, a.description, a.file_path, a.file_size, a.tags,
	a.folder_id, a.created_at, a.updated_at, a.is_deleted,
	EXISTS (SELECT 1 FROM thumbnails t WHERE t.asset_id = a.id)
`

// CreateAsset inserts a new asset record and fills in its generated ID and
// timestamps. Returns ErrAssetExists when a non-deleted asset already holds
// the same file path.
func (d *Database) CreateAsset(ctx context.Context, asset *Asset) error {
	done := observeQuery("create_asset")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tags, err := marshalTags(asset.Tags)
	if err != nil {
		done(err)
		return err
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO assets (name, description, file_path, file_size, tags, folder_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		asset.Name,
		nullString(asset.Description),
		asset.FilePath,
		asset.FileSize,
		tags,
		nullInt64(asset.FolderID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %s", ErrAssetExists, asset.FilePath)
		}
		done(err)
		return err
	}

	asset.ID, _ = result.LastInsertId()
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	done(nil)
	return nil
}

// GetAsset returns a non-deleted asset by ID.
func (d *Database) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	done := observeQuery("get_asset")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE a.id = ? AND a.is_deleted = 0
	`, id)

	asset, err := scanAsset(row)
	done(err)
	return asset, err
}

// GetAssetByPath returns the non-deleted asset holding filePath, or
// ErrNotFound. This is the dedup check used by the scanner and the live
// watcher before creating records.
func (d *Database) GetAssetByPath(ctx context.Context, filePath string) (*Asset, error) {
	done := observeQuery("get_asset_by_path")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE a.file_path = ? AND a.is_deleted = 0
	`, filePath)

	asset, err := scanAsset(row)
	done(err)
	return asset, err
}

// GetAllAssets returns all non-deleted assets, most recently updated first.
func (d *Database) GetAllAssets(ctx context.Context) ([]Asset, error) {
	done := observeQuery("get_all_assets")

	assets, err := d.queryAssets(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE a.is_deleted = 0
		ORDER BY a.updated_at DESC, a.id DESC
	`)
	done(err)
	return assets, err
}

// SearchAssets returns non-deleted assets whose name, description or tags
// contain the query string.
func (d *Database) SearchAssets(ctx context.Context, query string) ([]Asset, error) {
	done := observeQuery("search_assets")

	pattern := "%" + query + "%"
	assets, err := d.queryAssets(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE (a.name LIKE ? OR a.description LIKE ? OR a.tags LIKE ?)
			AND a.is_deleted = 0
		ORDER BY a.updated_at DESC, a.id DESC
	`, pattern, pattern, pattern)
	done(err)
	return assets, err
}

// GetAssetsByTag returns non-deleted assets carrying the given tag.
func (d *Database) GetAssetsByTag(ctx context.Context, tag string) ([]Asset, error) {
	done := observeQuery("get_assets_by_tag")

	// The LIKE match over the serialized list over-selects (substring tags);
	// exact membership is confirmed after deserialization.
	candidates, err := d.queryAssets(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE a.tags LIKE ? AND a.is_deleted = 0
		ORDER BY a.updated_at DESC, a.id DESC
	`, "%"+tag+"%")
	if err != nil {
		done(err)
		return nil, err
	}

	var assets []Asset
	for _, asset := range candidates {
		for _, t := range asset.Tags {
			if t == tag {
				assets = append(assets, asset)
				break
			}
		}
	}

	done(nil)
	return assets, nil
}

// GetAssetsByFolder returns non-deleted assets belonging to a folder,
// ordered by name.
func (d *Database) GetAssetsByFolder(ctx context.Context, folderID int64) ([]Asset, error) {
	done := observeQuery("get_assets_by_folder")

	assets, err := d.queryAssets(ctx, `
		SELECT `+assetColumns+`
		FROM assets a
		WHERE a.folder_id = ? AND a.is_deleted = 0
		ORDER BY a.name COLLATE NOCASE
	`, folderID)
	done(err)
	return assets, err
}

// UpdateAsset applies user-editable metadata changes and returns the
// updated record.
func (d *Database) UpdateAsset(ctx context.Context, id int64, update AssetUpdate) (*Asset, error) {
	done := observeQuery("update_asset")

	err := func() error {
		d.mu.Lock()
		defer d.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		var sets []string
		var args []interface{}

		if update.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *update.Name)
		}
		if update.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, nullString(*update.Description))
		}
		if update.Tags != nil {
			tags, err := marshalTags(update.Tags)
			if err != nil {
				return err
			}
			sets = append(sets, "tags = ?")
			args = append(args, tags)
		}

		if len(sets) == 0 {
			return nil
		}

		sets = append(sets, "updated_at = strftime('%s', 'now')")
		args = append(args, id)

		query := "UPDATE assets SET " + joinSets(sets) + " WHERE id = ? AND is_deleted = 0"
		result, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	}()
	if err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return d.GetAsset(ctx, id)
}

// TouchAssetFile records a file change observed on disk: new size, fresh
// updated_at. Keyed by path because watcher events carry paths, not IDs.
func (d *Database) TouchAssetFile(ctx context.Context, filePath string, fileSize int64) error {
	done := observeQuery("touch_asset_file")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE assets
		SET file_size = ?, updated_at = strftime('%s', 'now')
		WHERE file_path = ? AND is_deleted = 0
	`, fileSize, filePath)
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

// SoftDeleteAsset marks an asset deleted without removing its row. The
// thumbnail row survives until a hard delete.
func (d *Database) SoftDeleteAsset(ctx context.Context, id int64) error {
	done := observeQuery("soft_delete_asset")
	err := d.softDelete(ctx, "id", id)
	done(err)
	return err
}

// SoftDeleteAssetByPath soft-deletes the asset holding filePath.
func (d *Database) SoftDeleteAssetByPath(ctx context.Context, filePath string) error {
	done := observeQuery("soft_delete_asset_by_path")
	err := d.softDelete(ctx, "file_path", filePath)
	done(err)
	return err
}

func (d *Database) softDelete(ctx context.Context, column string, key interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE assets SET is_deleted = 1, updated_at = strftime('%s', 'now') WHERE "+column+" = ? AND is_deleted = 0",
		key,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDeleteAssetsForFolder permanently removes every asset (including
// soft-deleted ones) belonging to a folder. Thumbnails cascade. Used by
// rescan to guarantee no stale entries survive, and by folder removal.
func (d *Database) HardDeleteAssetsForFolder(ctx context.Context, folderID int64) (int64, error) {
	done := observeQuery("hard_delete_folder_assets")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM assets WHERE folder_id = ?", folderID)
	if err != nil {
		done(err)
		return 0, err
	}

	deleted, err := result.RowsAffected()
	done(err)
	return deleted, err
}

// GetAllTags returns the sorted union of tags across all non-deleted assets.
func (d *Database) GetAllTags(ctx context.Context) ([]string, error) {
	done := observeQuery("get_all_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT tags FROM assets WHERE tags IS NOT NULL AND is_deleted = 0",
	)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close tags rows: %v", closeErr)
		}
	}()

	tagSet := make(map[string]struct{})
	for rows.Next() {
		var serialized string
		if err := rows.Scan(&serialized); err != nil {
			done(err)
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(serialized), &tags); err != nil {
			logging.Warn("skipping malformed tag list %q: %v", serialized, err)
			continue
		}
		for _, tag := range tags {
			tagSet[tag] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	all := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		all = append(all, tag)
	}
	sort.Strings(all)

	done(nil)
	return all, nil
}

// queryAssets runs a query selecting assetColumns and scans all rows.
func (d *Database) queryAssets(ctx context.Context, query string, args ...interface{}) ([]Asset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Warn("failed to close asset rows: %v", closeErr)
		}
	}()

	var assets []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var asset Asset
	var description sql.NullString
	var tags sql.NullString
	var folderID sql.NullInt64
	var createdAt, updatedAt int64
	var isDeleted int

	err := row.Scan(
		&asset.ID, &asset.Name, &description, &asset.FilePath, &asset.FileSize,
		&tags, &folderID, &createdAt, &updatedAt, &isDeleted, &asset.HasThumbnail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if description.Valid {
		asset.Description = description.String
	}
	if folderID.Valid {
		id := folderID.Int64
		asset.FolderID = &id
	}
	asset.Tags = []string{}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &asset.Tags); err != nil {
			logging.Warn("malformed tags for asset %d: %v", asset.ID, err)
			asset.Tags = []string{}
		}
	}
	asset.CreatedAt = time.Unix(createdAt, 0)
	asset.UpdatedAt = time.Unix(updatedAt, 0)
	asset.IsDeleted = isDeleted != 0

	return &asset, nil
}

func marshalTags(tags []string) (interface{}, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tags: %w", err)
	}
	return string(data), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
