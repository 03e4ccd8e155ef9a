package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under a directory and addresses them with file://
// URIs. It backs the sqlite deployment where no bucket is configured.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("NewLocalStore: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStore: creating %q: %w", abs, err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Put(ctx context.Context, objectName string, r io.Reader) (string, error) {
	dst := filepath.Join(s.root, filepath.FromSlash(objectName))
	if !strings.HasPrefix(dst, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("Put: object name %q escapes the store root", objectName)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("Put: create %q: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("Put: write %q: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("Put: close %q: %w", dst, err)
	}
	return "file://" + filepath.ToSlash(dst), nil
}

func (s *LocalStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, fmt.Errorf("Fetch: invalid file URI: %s", uri)
	}
	data, err := os.ReadFile(filepath.FromSlash(strings.TrimPrefix(uri, "file://")))
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}
