package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"forma-server/internal/database"
	"forma-server/internal/logging"
)

// ListFolders returns all watched folders with their active asset counts.
func (h *Handlers) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.db.GetWatchedFolders(r.Context())
	if err != nil {
		logging.Error("failed to list folders: %v", err)
		writeJSONError(w, "failed to list folders", http.StatusInternalServerError)
		return
	}
	if folders == nil {
		folders = []database.WatchedFolder{}
	}
	writeJSON(w, folders)
}

// ListFolderAssets returns the active assets catalogued under one folder.
func (h *Handlers) ListFolderAssets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetWatchedFolder(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get folder %d: %v", id, err)
		writeJSONError(w, "failed to get folder", http.StatusInternalServerError)
		return
	}

	assets, err := h.db.GetAssetsByFolder(r.Context(), id)
	if err != nil {
		logging.Error("failed to list assets for folder %d: %v", id, err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []database.Asset{}
	}
	writeJSON(w, assets)
}

// AddFolder registers a new watched folder and starts its initial scan. The
// directory picker is the client's concern; the request carries the chosen
// absolute path.
func (h *Handlers) AddFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	folder, err := h.registry.AddFolder(r.Context(), req.Path)
	if err != nil {
		logging.Warn("failed to add folder %s: %v", req.Path, err)
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSONCode(w, http.StatusCreated, folder)
}

// RemoveFolder unregisters a watched folder; its assets are hard-deleted.
func (h *Handlers) RemoveFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	if err := h.registry.RemoveFolder(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to remove folder %d: %v", id, err)
		writeJSONError(w, "failed to remove folder", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "removed")
}

// ToggleFolder enables or disables a watched folder.
func (h *Handlers) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.registry.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to toggle folder %d: %v", id, err)
		writeJSONError(w, "failed to toggle folder", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "updated")
}

// RescanFolder purges and rescans a folder in the background.
func (h *Handlers) RescanFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	if err := h.registry.Rescan(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSONCode(w, http.StatusAccepted, map[string]string{"status": "rescanning"})
}

// CancelScan stops an in-progress scan for a folder. The scan keeps all
// assets committed before the cancellation took effect.
func (h *Handlers) CancelScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid folder id", http.StatusBadRequest)
		return
	}

	folder, err := h.db.GetWatchedFolder(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "folder not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get folder %d: %v", id, err)
		writeJSONError(w, "failed to get folder", http.StatusInternalServerError)
		return
	}

	if !h.registry.CancelScan(folder.Path) {
		writeJSONError(w, "no scan in progress", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, "cancelling")
}
