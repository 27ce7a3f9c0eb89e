package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"forma-server/internal/database"
	"forma-server/internal/logging"
	"forma-server/internal/thumbnail"
)

// decodeDataURI extracts the base64 payload from a data URI.
func decodeDataURI(raw []byte) ([]byte, error) {
	_, payload, found := bytes.Cut(raw, []byte(","))
	if !found {
		return nil, fmt.Errorf("data URI has no payload separator")
	}
	decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return decoded, nil
}

// maxThumbnailUpload bounds renderer-submitted thumbnail payloads.
const maxThumbnailUpload = 10 * 1024 * 1024

// GetThumbnail returns an asset's thumbnail as a data URI. Assets without a
// stored thumbnail get an SVG placeholder, never a 404, so the client always
// has something to draw.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
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

	data, err := h.db.GetThumbnail(r.Context(), id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Error("failed to get thumbnail for asset %d: %v", id, err)
		}
		data = thumbnail.Placeholder(asset.FilePath)
	}

	writeJSON(w, map[string]string{"dataUri": thumbnail.DataURI(data)})
}

// PutThumbnail stores a client-rendered thumbnail for an asset. Raster
// payloads are bounded and re-encoded; SVG passes through.
func (h *Handlers) PutThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetAsset(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get asset %d: %v", id, err)
		writeJSONError(w, "failed to get asset", http.StatusInternalServerError)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxThumbnailUpload+1))
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(raw) == 0 {
		writeJSONError(w, "empty thumbnail payload", http.StatusBadRequest)
		return
	}
	if len(raw) > maxThumbnailUpload {
		writeJSONError(w, "thumbnail payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	// Renderers submit either raw image bytes or a data URI.
	if bytes.HasPrefix(raw, []byte("data:")) {
		decoded, err := decodeDataURI(raw)
		if err != nil {
			writeJSONError(w, "malformed data URI", http.StatusBadRequest)
			return
		}
		raw = decoded
	}

	data, err := thumbnail.Normalize(raw)
	if err != nil {
		writeJSONError(w, "unrecognized image payload", http.StatusUnprocessableEntity)
		return
	}

	if err := h.db.SaveThumbnail(r.Context(), id, data); err != nil {
		logging.Error("failed to save thumbnail for asset %d: %v", id, err)
		writeJSONError(w, "failed to save thumbnail", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "saved")
}

// DeleteThumbnail removes a single asset's stored thumbnail. The next fetch
// falls back to the placeholder.
func (h *Handlers) DeleteThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetAsset(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "asset not found", http.StatusNotFound)
			return
		}
		logging.Error("failed to get asset %d: %v", id, err)
		writeJSONError(w, "failed to get asset", http.StatusInternalServerError)
		return
	}

	if err := h.db.DeleteThumbnail(r.Context(), id); err != nil {
		logging.Error("failed to delete thumbnail for asset %d: %v", id, err)
		writeJSONError(w, "failed to delete thumbnail", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "deleted")
}

// ClearThumbnails deletes every stored thumbnail.
func (h *Handlers) ClearThumbnails(w http.ResponseWriter, r *http.Request) {
	count, err := h.db.ClearAllThumbnails(r.Context())
	if err != nil {
		logging.Error("failed to clear thumbnails: %v", err)
		writeJSONError(w, "failed to clear thumbnails", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"cleared": count})
}
