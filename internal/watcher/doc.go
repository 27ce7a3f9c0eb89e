// Package watcher keeps the catalog synchronized with live filesystem
// changes inside watched folders. Each watched folder gets one recursive
// fsnotify watcher; write bursts are debounced so a file is only catalogued
// once it has settled, and removed files are soft-deleted immediately.
package watcher
