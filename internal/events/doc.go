// Package events implements the in-process progress channel: a small
// publish/subscribe bus carrying scan progress snapshots and asset/folder
// change notifications from the scanner and live watcher to API observers.
//
// Publishing never blocks. A subscriber that cannot keep up has events
// dropped rather than stalling the producer; progress snapshots are
// superseded by the next one anyway.
package events
