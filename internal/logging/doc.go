// Package logging provides leveled logging for the asset library service.
//
// The log level is configured through environment variables:
//   - DEBUG=1 (or true/yes/on) enables debug output
//   - LOG_LEVEL=debug|info|warn|error selects a level explicitly
//
// The default level is info.
package logging
