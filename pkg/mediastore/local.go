package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local implements Backend on the local filesystem. Each object is stored as
// "<key>" with its MIME type in a "<key>.mime" sidecar.
type Local struct {
	root string
}

// NewLocal creates a Local backend rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return "", fmt.Errorf("mediastore: invalid key %q", key)
	}
	return filepath.Join(l.root, key), nil
}

// Put writes data and its MIME sidecar.
func (l *Local) Put(_ context.Context, key, mimeType string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	return os.WriteFile(p+".mime", []byte(mimeType), 0o644)
}

// Get opens the stored file. A missing sidecar yields an empty MIME type.
func (l *Local) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("mediastore: get %s: %w", key, ErrNotFound)
		}
		return nil, "", err
	}
	mime, _ := os.ReadFile(p + ".mime")
	return f, string(mime), nil
}

// Delete removes the object and its sidecar. Missing files are ignored.
func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	for _, name := range []string{p, p + ".mime"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

var _ Backend = (*Local)(nil)
