// Package storage provides BlobStore implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/cardex-app/imagekit/errors"
)

// Local stores blobs on the local filesystem.  Public URLs are file://
// paths, which keeps dev setups and tests free of network dependencies.
type Local struct {
	rootDir     string
	permissions os.FileMode
}

// NewLocal creates a Local blob store rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}
	return &Local{rootDir: dir, permissions: perm}, nil
}

func (l *Local) absPath(bucket, path string) string {
	// Bucket maps to a subdirectory; Path is the object key.
	return filepath.Join(l.rootDir, filepath.Clean(bucket), filepath.Clean(path))
}

func (l *Local) Store(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.store", err)
	}
	if len(data) == 0 {
		return apperrors.New(apperrors.CategoryStorage, "local.store", apperrors.ErrEmptyInput)
	}

	abs := l.absPath(bucket, path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.store.mkdir", err)
	}
	if err := os.WriteFile(abs, data, l.permissions); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.store.write", err)
	}
	return nil
}

func (l *Local) PublicURL(bucket, path string) string {
	abs, err := filepath.Abs(l.absPath(bucket, path))
	if err != nil {
		abs = l.absPath(bucket, path)
	}
	return "file://" + abs
}

func (l *Local) Remove(ctx context.Context, bucket string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
	}
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(l.absPath(bucket, p)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = apperrors.Wrap(apperrors.CategoryStorage, "local.remove", err)
			}
		}
	}
	return firstErr
}
