package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects under a directory on disk. URIs are file paths.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("NewLocal: resolve %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocal: create %q: %w", abs, err)
	}
	return &Local{root: abs}, nil
}

// Put implements Store.
func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst, err := l.resolve(key)
	if err != nil {
		return "", fmt.Errorf("Local.Put: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("Local.Put: create directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("Local.Put: write %q: %w", dst, err)
	}
	return dst, nil
}

// Get implements Store.
func (l *Local) Get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := filepath.Clean(uri)
	if !l.contains(p) {
		return nil, fmt.Errorf("Local.Get: %q is outside %q", uri, l.root)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("Local.Get: %w", err)
	}
	return data, nil
}

func (l *Local) resolve(key string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(key))
	if !l.contains(p) {
		return "", fmt.Errorf("key %q escapes %q", key, l.root)
	}
	return p, nil
}

func (l *Local) contains(p string) bool {
	rel, err := filepath.Rel(l.root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

var _ Store = (*Local)(nil)
