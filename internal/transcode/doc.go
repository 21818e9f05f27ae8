// Package transcode converts the recorder's native output into a more widely
// playable container/codec pair as an optional second pass.
//
// The encoder runtime is owned by a RuntimePool with an explicit lifecycle
// (uninitialized, loading, ready, failed): the first caller triggers
// resolution, concurrent callers await the same in-flight load, and a failed
// load resets the pool so a later call can retry from scratch. Transcode
// failures are non-fatal to the overall run; the orchestrator falls back to
// the native-format blob.
package transcode
