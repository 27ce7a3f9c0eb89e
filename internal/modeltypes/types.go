package modeltypes

import (
	"path/filepath"
	"strings"
)

// ModelExtensions maps supported 3D model file extensions (lowercase, with
// leading dot) to whether they are recognized.
var ModelExtensions = map[string]bool{
	".glb":  true,
	".gltf": true,
	".obj":  true,
	".stl":  true,
	".fbx":  true,
}

var mimeTypes = map[string]string{
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".obj":  "model/obj",
	".stl":  "model/stl",
	".fbx":  "application/octet-stream",
}

// IsSupported reports whether path has a supported 3D model extension.
func IsSupported(path string) bool {
	return ModelExtensions[Ext(path)]
}

// Ext returns the lowercased extension of path, including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// MimeType returns the MIME type for a model file path, or
// application/octet-stream when the extension is not recognized.
func MimeType(path string) string {
	if mime, ok := mimeTypes[Ext(path)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// DisplayName derives the default asset display name from a file path:
// the base filename without its extension.
func DisplayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsHidden reports whether the final path element is a hidden entry
// (name beginning with a dot).
func IsHidden(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}
