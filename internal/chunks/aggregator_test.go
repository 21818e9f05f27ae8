package chunks

import (
	"bytes"
	"testing"

	"inkmark/internal/logging"
)

func TestAggregatorAssemblesInOrder(t *testing.T) {
	agg := NewAggregator(logging.NewNop(), 0)

	parts := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}
	for _, part := range parts {
		if err := agg.Add(part); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	blob := agg.Blob("video/webm")
	if blob.MIME != "video/webm" {
		t.Fatalf("MIME = %q", blob.MIME)
	}
	if want := []byte("first-second-third"); !bytes.Equal(blob.Data, want) {
		t.Fatalf("Data = %q, want %q", blob.Data, want)
	}
	if blob.Size() != int64(len("first-second-third")) {
		t.Fatalf("Size = %d", blob.Size())
	}
}

func TestAggregatorIgnoresEmptyChunks(t *testing.T) {
	agg := NewAggregator(logging.NewNop(), 0)
	if err := agg.Add(nil); err != nil {
		t.Fatalf("Add nil: %v", err)
	}
	if err := agg.Add([]byte{}); err != nil {
		t.Fatalf("Add empty: %v", err)
	}
	if stats := agg.Stats(); stats.ChunkCount != 0 {
		t.Fatalf("ChunkCount = %d, want 0", stats.ChunkCount)
	}
}

func TestAggregatorCopiesChunks(t *testing.T) {
	agg := NewAggregator(logging.NewNop(), 0)
	chunk := []byte{1, 2, 3}
	if err := agg.Add(chunk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	chunk[0] = 99

	blob := agg.Blob("video/webm")
	if blob.Data[0] != 1 {
		t.Fatal("aggregator must copy chunk data, not alias the caller's slice")
	}
}

func TestAggregatorRejectsAddAfterFinalize(t *testing.T) {
	agg := NewAggregator(logging.NewNop(), 0)
	if err := agg.Add([]byte("data")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_ = agg.Blob("video/webm")

	if err := agg.Add([]byte("late")); err == nil {
		t.Fatal("expected error when adding after finalization")
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator(logging.NewNop(), 2)
	for i := 0; i < 3; i++ {
		if err := agg.Add(make([]byte, 100)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	stats := agg.Stats()
	if stats.ChunkCount != 3 {
		t.Fatalf("ChunkCount = %d, want 3", stats.ChunkCount)
	}
	if stats.TotalBytes != 300 {
		t.Fatalf("TotalBytes = %d, want 300", stats.TotalBytes)
	}
	if stats.AverageChunkSize != 100 {
		t.Fatalf("AverageChunkSize = %d, want 100", stats.AverageChunkSize)
	}
}
