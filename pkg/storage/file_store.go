package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileImageStore saves image blobs to local disk. Fallback for runs
// without MinIO; GetURL returns a server-relative path.
type FileImageStore struct {
	basePath string
}

// NewFileImageStore creates the base directory if missing.
func NewFileImageStore(basePath string) (*FileImageStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileImageStore{basePath: basePath}, nil
}

// Put writes the blob under the given key.
func (f *FileImageStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target := filepath.Join(f.basePath, safeKey(key))
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// GetURL returns a path the HTTP layer serves directly.
func (f *FileImageStore) GetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "/uploads/" + safeKey(key), nil
}

// Delete removes the blob.
func (f *FileImageStore) Delete(_ context.Context, key string) error {
	target := filepath.Join(f.basePath, safeKey(key))
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(target)
}

// Path resolves a key to its on-disk location.
func (f *FileImageStore) Path(key string) string {
	return filepath.Join(f.basePath, safeKey(key))
}

func safeKey(key string) string {
	key = filepath.Base(key)
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	key = strings.TrimSpace(key)
	if key == "" {
		return "image"
	}
	return key
}
