// Package scanner orchestrates full scans of watched folders. A scan walks
// the folder tree, filters for supported model files, and commits new assets
// to the catalog in fixed-size concurrent batches while streaming throttled
// progress events. Cancellation between batches leaves already committed
// assets in place.
package scanner
