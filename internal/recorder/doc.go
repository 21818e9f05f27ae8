// Package recorder drives the real-time encode leg of the pipeline.
//
// It runs two ffmpeg processes: a decoder emitting raw RGBA frames and an
// encoder consuming the composited frames while muxing in audio demuxed
// independently from the same source. Encoded output is sliced into chunks on
// a fixed time slice, and a safety timeout guarantees the recording
// terminates even if the decoder never signals end of stream.
//
// State machine: idle -> recording -> (ended | timed_out | errored) ->
// stopped. Both ended and timed_out finalize normally; errored fails the run.
package recorder
