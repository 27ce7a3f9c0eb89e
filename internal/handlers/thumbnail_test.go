package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"forma-server/internal/thumbnail"
)

func TestGetThumbnailReturnsPlaceholderWhenMissing(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/bare.glb", nil)

	rec := env.request(t, http.MethodGet, "/api/assets/"+itoa(asset.ID)+"/thumbnail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp map[string]string
	env.decode(t, rec, &resp)
	if !strings.HasPrefix(resp["dataUri"], "data:image/svg+xml;base64,") {
		t.Errorf("dataUri = %q, want SVG placeholder", resp["dataUri"][:40])
	}
}

func TestGetThumbnailStored(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if err := env.db.SaveThumbnail(context.Background(), asset.ID, jpeg); err != nil {
		t.Fatalf("SaveThumbnail failed: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/api/assets/"+itoa(asset.ID)+"/thumbnail", nil)
	var resp map[string]string
	env.decode(t, rec, &resp)
	if !strings.HasPrefix(resp["dataUri"], "data:image/jpeg;base64,") {
		t.Errorf("dataUri = %q, want JPEG", resp["dataUri"])
	}
}

func TestGetThumbnailAssetNotFound(t *testing.T) {
	env := setupHandlers(t)

	rec := env.request(t, http.MethodGet, "/api/assets/999/thumbnail", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func putThumbnail(t *testing.T, env *testEnv, assetID int64, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/assets/"+itoa(assetID)+"/thumbnail", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestPutThumbnailRaster(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}

	rec := putThumbnail(t, env, asset.ID, buf.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	stored, err := env.db.GetThumbnail(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetThumbnail failed: %v", err)
	}
	// Upload is re-encoded as JPEG.
	if stored[0] != 0xFF || stored[1] != 0xD8 {
		t.Errorf("Stored thumbnail is not JPEG")
	}
}

func TestPutThumbnailSVG(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	rec := putThumbnail(t, env, asset.ID, svg)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	stored, err := env.db.GetThumbnail(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetThumbnail failed: %v", err)
	}
	if !thumbnail.IsSVG(stored) {
		t.Error("SVG upload not stored as SVG")
	}
}

func TestPutThumbnailDataURI(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	uri := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg)
	rec := putThumbnail(t, env, asset.ID, []byte(uri))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	stored, err := env.db.GetThumbnail(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetThumbnail failed: %v", err)
	}
	if !bytes.Equal(stored, svg) {
		t.Errorf("Stored = %q, want original SVG", stored)
	}
}

func TestPutThumbnailMalformedDataURI(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	rec := putThumbnail(t, env, asset.ID, []byte("data:image/png;base64"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestPutThumbnailRejectsGarbage(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	rec := putThumbnail(t, env, asset.ID, []byte("not an image"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status = %d, want 422", rec.Code)
	}
}

func TestPutThumbnailRejectsEmpty(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	rec := putThumbnail(t, env, asset.ID, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestPutThumbnailAssetNotFound(t *testing.T) {
	env := setupHandlers(t)

	rec := putThumbnail(t, env, 999, []byte("<svg/>"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestDeleteThumbnailEndpoint(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)
	if err := env.db.SaveThumbnail(context.Background(), asset.ID, []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("SaveThumbnail failed: %v", err)
	}

	rec := env.request(t, http.MethodDelete, "/api/assets/"+itoa(asset.ID)+"/thumbnail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	// Subsequent fetches fall back to the placeholder.
	rec = env.request(t, http.MethodGet, "/api/assets/"+itoa(asset.ID)+"/thumbnail", nil)
	var resp map[string]string
	env.decode(t, rec, &resp)
	if !strings.HasPrefix(resp["dataUri"], "data:image/svg+xml;base64,") {
		t.Errorf("dataUri = %q, want placeholder after delete", resp["dataUri"][:40])
	}

	rec = env.request(t, http.MethodDelete, "/api/assets/999/thumbnail", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing asset status = %d, want 404", rec.Code)
	}
}

func TestThumbnailDataURIDecodes(t *testing.T) {
	env := setupHandlers(t)
	asset := env.createAsset(t, "/m/a.glb", nil)

	rec := env.request(t, http.MethodGet, "/api/assets/"+itoa(asset.ID)+"/thumbnail", nil)
	var resp map[string]string
	env.decode(t, rec, &resp)

	parts := strings.SplitN(resp["dataUri"], ",", 2)
	if len(parts) != 2 {
		t.Fatalf("Malformed data URI: %q", resp["dataUri"])
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("Payload is not valid base64: %v", err)
	}
	if len(decoded) == 0 {
		t.Error("Data URI payload empty")
	}
}
