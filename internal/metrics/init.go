package metrics

// InitializeMetrics pre-populates expected label combinations so that every
// metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, outcome := range []string{"completed", "cancelled", "error"} {
		ScansTotal.WithLabelValues(outcome)
	}

	for _, reason := range []string{"unsupported", "duplicate", "error"} {
		ScanFilesSkipped.WithLabelValues(reason)
	}

	for _, reason := range []string{"hidden", "unreadable", "depth"} {
		WalkerEntriesSkipped.WithLabelValues(reason)
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod", "unknown"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	for _, status := range []string{"rendered", "placeholder", "error"} {
		ThumbnailGenerationsTotal.WithLabelValues(status)
	}

	for _, op := range []string{
		"initialize_schema", "create_asset", "get_asset", "get_asset_by_path",
		"get_all_assets", "search_assets", "update_asset", "soft_delete_asset",
		"hard_delete_folder_assets", "save_thumbnail", "get_thumbnail",
		"clear_thumbnails", "add_folder", "remove_folder", "list_folders",
		"update_folder", "mark_folder_scanned",
	} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
