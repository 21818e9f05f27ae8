package chunks

import (
	"fmt"
	"log/slog"
	"sync"

	"inkmark/internal/logging"
)

// Blob is an assembled media payload tagged with its MIME type.
type Blob struct {
	Data []byte
	MIME string
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}

// Stats summarizes aggregator state.
type Stats struct {
	ChunkCount       int
	TotalBytes       int64
	AverageChunkSize int64
}

// Aggregator collects encoded chunks in arrival order.
type Aggregator struct {
	mu          sync.Mutex
	logger      *slog.Logger
	softCeiling int

	chunks    [][]byte
	total     int64
	finalized bool
}

// NewAggregator builds an empty aggregator. softCeiling > 0 enables the
// long-run warning once chunk count passes it.
func NewAggregator(logger *slog.Logger, softCeiling int) *Aggregator {
	return &Aggregator{
		logger:      logging.WithComponent(logger, "chunks"),
		softCeiling: softCeiling,
	}
}

// Add appends one encoded chunk. Empty chunks are ignored. Adding after
// finalization is a programming error and is reported as one.
func (a *Aggregator) Add(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return fmt.Errorf("aggregator already finalized")
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	a.chunks = append(a.chunks, owned)
	a.total += int64(len(owned))
	if a.softCeiling > 0 && len(a.chunks) == a.softCeiling+1 {
		// A proxy for unexpectedly long recordings holding too much memory.
		a.logger.Warn("chunk count passed soft ceiling",
			slog.Int("ceiling", a.softCeiling),
			slog.Int64("total_bytes", a.total),
		)
	}
	return nil
}

// Blob assembles the accumulated chunks, in order, into the deliverable and
// freezes the aggregator.
func (a *Aggregator) Blob(mimeType string) *Blob {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	data := make([]byte, 0, a.total)
	for _, chunk := range a.chunks {
		data = append(data, chunk...)
	}
	return &Blob{Data: data, MIME: mimeType}
}

// Stats reports current bookkeeping.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := Stats{ChunkCount: len(a.chunks), TotalBytes: a.total}
	if stats.ChunkCount > 0 {
		stats.AverageChunkSize = stats.TotalBytes / int64(stats.ChunkCount)
	}
	return stats
}
