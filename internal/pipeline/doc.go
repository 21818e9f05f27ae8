// Package pipeline sequences the watermarking run end to end: capability and
// memory prechecks, resource loading, geometry, the record/compose/mux leg,
// chunk aggregation, the optional second-pass transcode, and cleanup.
//
// It owns the resilience contract: progress percentages are monotonic within
// a run, every registered resource is released exactly once on every exit
// path, suspension pauses decode without discarding encoded chunks, and the
// public produce operation wraps the whole pipeline in a bounded retry before
// the caller is pointed at the unwatermarked original as a last resort.
package pipeline
