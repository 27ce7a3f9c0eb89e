package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/logging"
	"forma-server/internal/modeltypes"
)

// ListAssets returns all active assets, optionally filtered by a free-text
// query (?q=) or an exact tag (?tag=).
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		assets []database.Asset
		err    error
	)
	switch {
	case r.URL.Query().Get("q") != "":
		assets, err = h.db.SearchAssets(ctx, r.URL.Query().Get("q"))
	case r.URL.Query().Get("tag") != "":
		assets, err = h.db.GetAssetsByTag(ctx, r.URL.Query().Get("tag"))
	default:
		assets, err = h.db.GetAllAssets(ctx)
	}
	if err != nil {
		logging.Error("failed to list assets: %v", err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}

	if assets == nil {
		assets = []database.Asset{}
	}
	writeJSON(w, assets)
}

// GetAsset returns one asset by ID.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	asset, err := h.db.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get asset %d: %v", id, err)
		writeJSONError(w, "failed to get asset", http.StatusInternalServerError)
		return
	}
	writeJSON(w, asset)
}

// UpdateAsset applies a partial metadata update (name, description, tags).
func (h *Handlers) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	var update database.AssetUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	asset, err := h.db.UpdateAsset(r.Context(), id, update)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to update asset %d: %v", id, err)
		writeJSONError(w, "failed to update asset", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.Event{Type: events.TypeAssetUpdated, Payload: asset})
	writeJSON(w, asset)
}

// DeleteAsset soft-deletes an asset. Its thumbnail row stays behind.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	if err := h.db.SoftDeleteAsset(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to delete asset %d: %v", id, err)
		writeJSONError(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.Event{Type: events.TypeAssetRemoved, Payload: map[string]int64{"id": id}})
	writeJSONStatus(w, "deleted")
}

// GetModel streams the raw model file bytes for client-side preview.
func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	asset, err := h.db.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get asset %d: %v", id, err)
		writeJSONError(w, "failed to get asset", http.StatusInternalServerError)
		return
	}

	f, err := os.Open(asset.FilePath)
	if err != nil {
		logging.Warn("model file missing for asset %d: %v", id, err)
		writeJSONError(w, "model file not accessible", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", modeltypes.MimeType(asset.FilePath))
	http.ServeContent(w, r, asset.FilePath, asset.UpdatedAt, f)
}

// ListTags returns the sorted union of all tags on active assets.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.GetAllTags(r.Context())
	if err != nil {
		logging.Error("failed to list tags: %v", err)
		writeJSONError(w, "failed to list tags", http.StatusInternalServerError)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, tags)
}
