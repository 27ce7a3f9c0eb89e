// Package walker provides a concurrent directory tree walker used by the
// scan engine. Each directory is read exactly once; subdirectories are
// descended in bounded concurrent chunks so a wide tree cannot spawn an
// unbounded number of goroutines. Unreadable subdirectories are logged and
// skipped, and cancellation yields the partial file list collected so far.
package walker
