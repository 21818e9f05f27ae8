// Package runstore persists pipeline run records to SQLite.
//
// Each watermarking invocation is one row tracking status, progress, frame
// counters, and the final output or failure. The store backs the `runs` CLI
// command and survives process restarts; it is bookkeeping only and never
// drives pipeline control flow.
package runstore
