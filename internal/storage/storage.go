package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore abstracts object storage for watermark inputs and outputs. The
// local filesystem implementation is the default; a bucket-backed store can
// be swapped in without touching callers.
type BlobStore interface {
	// Download copies the object at path into w.
	Download(ctx context.Context, path string, w io.Writer) error
	// Upload writes data to path, replacing any existing object.
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalStore is a BlobStore rooted at a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir. The directory is created if
// missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: dir}, nil
}

// Root returns the store's base directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

func (s *LocalStore) Download(ctx context.Context, path string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("open object: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	return nil
}

func (s *LocalStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp := full + ".partial"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WatermarkedPath derives the sibling output path for a source object:
// "movies/clip.mp4" becomes "movies/clip_watermarked.mp4". A path without an
// extension gets the suffix appended directly.
func WatermarkedPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_watermarked" + ext
}
