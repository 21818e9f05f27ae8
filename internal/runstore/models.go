package runstore

import "time"

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusProcessing Status = "processing"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends the run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one watermarking invocation.
type Run struct {
	ID              string
	SourceURL       string
	WatermarkURL    string
	OutputFormat    string
	Status          Status
	Percent         float64
	FramesProcessed int
	TotalFrames     int
	FramesSkipped   int
	OutputMIME      string
	OutputBytes     int64
	OutputPath      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
