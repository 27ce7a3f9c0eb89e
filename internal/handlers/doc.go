// Package handlers implements the HTTP API surface of the model library
// server: asset browsing and metadata editing, thumbnail retrieval and
// upload, watched folder management, scan control, the websocket event
// stream, and health endpoints.
package handlers
