package database

import "time"

// Asset is a catalogued 3D model file.
//
// Exactly one non-deleted Asset exists per distinct file path. The folder
// reference is nullable; nil means the asset was orphaned by a removed
// folder.
type Asset struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	FilePath     string    `json:"filePath"`
	FileSize     int64     `json:"fileSize"`
	Tags         []string  `json:"tags"`
	FolderID     *int64    `json:"folderId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	IsDeleted    bool      `json:"isDeleted,omitempty"`
	HasThumbnail bool      `json:"hasThumbnail"`
}

// WatchedFolder is a directory root the service monitors for 3D model files.
// AssetCount is derived at query time, never stored.
type WatchedFolder struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Enabled     bool       `json:"enabled"`
	LastScanned *time.Time `json:"lastScanned,omitempty"`
	AssetCount  int        `json:"assetCount"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// AssetUpdate carries user-editable asset metadata. Nil fields are left
// unchanged; a non-nil Tags replaces the whole tag list.
type AssetUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}
