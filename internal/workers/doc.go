// Package workers computes worker pool sizes for concurrent tasks based on
// the CPUs available to the process, with environment-variable overrides.
package workers
