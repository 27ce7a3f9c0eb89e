// Package thumbnail generates preview images for catalogued model files.
// Rendering a 3D model to pixels is delegated to a pluggable Renderer; the
// generator wraps it with a bounded worker pool, per-asset deduplication, a
// wall-clock timeout, and a file-size ceiling. Oversized, failed, or
// unrenderable models get an SVG placeholder so every asset always has a
// thumbnail to show.
package thumbnail
