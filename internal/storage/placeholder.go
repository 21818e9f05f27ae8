package storage

import (
	"bytes"
	"context"
	"fmt"
)

// PlaceholderWatermark copies the source object to its watermarked sibling
// path without modifying the bytes. It exists so storage-level integrations
// can be exercised before the real pipeline is wired in; the output is NOT
// actually watermarked.
func PlaceholderWatermark(ctx context.Context, store BlobStore, sourcePath, contentType string) (string, error) {
	var buf bytes.Buffer
	if err := store.Download(ctx, sourcePath, &buf); err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}
	outPath := WatermarkedPath(sourcePath)
	if err := store.Upload(ctx, outPath, buf.Bytes(), contentType); err != nil {
		return "", fmt.Errorf("upload copy: %w", err)
	}
	return outPath, nil
}
