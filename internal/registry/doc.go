// Package registry coordinates watched folders: it owns the live watcher
// and the scan cancellation token for each folder path, enforcing at most
// one of each per path. All folder lifecycle operations (add, remove,
// enable, rescan, cancel) go through the registry so watcher and scan state
// never leak into ambient globals.
package registry
