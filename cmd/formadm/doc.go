// Command formadm is a catalog maintenance tool for the model library
// server. It operates directly on the SQLite catalog, so the server should
// be stopped (or idle) while running destructive commands.
//
// Usage:
//
//	formadm status            show catalog row counts
//	formadm purge             permanently remove soft-deleted assets
//	formadm clear-thumbnails  delete every stored thumbnail
//
// The catalog location is taken from DATABASE_DIR (default /database),
// matching the server's configuration.
package main
