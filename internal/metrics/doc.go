// Package metrics defines Prometheus metrics for the asset library service.
//
// Metrics cover the HTTP API, catalog database operations, folder scans,
// directory walking, live filesystem watching and thumbnail generation.
// All metrics use the forma_ prefix and are registered with the default
// registry via promauto.
package metrics
