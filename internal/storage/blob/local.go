// Package blob provides object stores for camera images and exported documents.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// Local stores objects as files beneath a base directory
type Local struct {
	baseDir string
}

var _ storage.ObjectStore = (*Local)(nil)

// NewLocal creates a local store, creating baseDir if it does not exist
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, errors.New("local object store: base directory must be specified")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create base directory %q: %w", baseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory %q: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory %q is not a directory", baseDir)
	}
	return &Local{baseDir: baseDir}, nil
}

// Put writes data to the file for key, creating parent directories
func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", key, err)
	}

	// Write then rename so readers never observe a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize %q: %w", key, err)
	}
	logging.Debugw(ctx, "Stored object", "key", key, "bytes", len(data), "path", path)
	return nil
}

// Get reads the file for key
func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return data, nil
}

// URL returns the local filesystem path for key
func (l *Local) URL(key string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key))
}

// resolve maps key to a path, rejecting keys that escape the base directory
func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.baseDir, clean), nil
}
