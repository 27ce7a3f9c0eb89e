// Package database provides the SQLite-backed catalog store for the asset
// library service.
//
// It handles storage and retrieval of:
//   - Asset records (3D model files with metadata and free-text tags)
//   - Thumbnail payloads (one binary blob per asset)
//   - Watched folder configuration
//
// The database uses WAL mode for concurrent read performance and enables
// foreign-key enforcement: removing a folder sets asset folder references
// to NULL unless the assets were already purged, and hard-deleting an asset
// cascades to its thumbnail row. Asset file paths carry a UNIQUE constraint;
// CreateAsset maps a uniqueness violation to ErrAssetExists so that
// concurrent writers racing on the same path can treat the loss as
// "already catalogued".
package database
