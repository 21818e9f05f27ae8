// Package ffprobe shells out to ffprobe to inspect media containers.
//
// The pipeline uses it to read source dimensions, duration, and codec hints
// before committing to a run, and for the advisory corruption check that runs
// a decode pass without producing output.
package ffprobe
