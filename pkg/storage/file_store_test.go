package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileImageStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileImageStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	ctx := context.Background()
	body := "not really a png"
	if err := fs.Put(ctx, "abc_cat.png", strings.NewReader(body), int64(len(body)), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := os.ReadFile(fs.Path("abc_cat.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != body {
		t.Fatalf("content mismatch: %q", data)
	}

	url, err := fs.GetURL(ctx, "abc_cat.png", time.Minute)
	if err != nil || url != "/uploads/abc_cat.png" {
		t.Fatalf("get url: %q %v", url, err)
	}

	if err := fs.Delete(ctx, "abc_cat.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(fs.Path("abc_cat.png")); !os.IsNotExist(err) {
		t.Fatalf("file still present after delete")
	}
	// Deleting a missing key is not an error.
	if err := fs.Delete(ctx, "abc_cat.png"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileImageStoreRejectsEmptyBase(t *testing.T) {
	if _, err := NewFileImageStore("  "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

func TestFileImageStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileImageStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	// Traversal components must not escape the base directory.
	got := fs.Path("../../etc/passwd")
	if !strings.HasPrefix(got, dir) {
		t.Fatalf("path escaped base dir: %q", got)
	}
	if filepath.Dir(got) != dir {
		t.Fatalf("expected file directly under base, got %q", got)
	}

	if fs.Path("") != filepath.Join(dir, "image") {
		t.Fatalf("empty key not defaulted: %q", fs.Path(""))
	}
}
