package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk.
// Uploads and images go to two separate directories; files are never
// cleaned up.
type LocalStorage struct {
	uploadDir string
	staticDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// Both directories are created if they don't exist.
func NewLocalStorage(uploadDir, staticDir string) (*LocalStorage, error) {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if staticDir == "" {
		staticDir = "static"
	}

	for _, dir := range []string{uploadDir, staticDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{uploadDir: uploadDir, staticDir: staticDir}, nil
}

// UploadDir returns the upload directory path.
func (s *LocalStorage) UploadDir() string {
	return s.uploadDir
}

// StaticDir returns the static directory path.
func (s *LocalStorage) StaticDir() string {
	return s.staticDir
}

// SaveUpload writes data to uploadDir/<base name>.
func (s *LocalStorage) SaveUpload(ctx context.Context, name string, data io.Reader) (string, error) {
	base, err := BaseName(name)
	if err != nil {
		return "", err
	}
	return writeFile(ctx, s.uploadDir, base, data)
}

// SaveImage writes data to staticDir/<base name>.
func (s *LocalStorage) SaveImage(ctx context.Context, name string, data io.Reader) (string, error) {
	base, err := BaseName(name)
	if err != nil {
		return "", err
	}
	return writeFile(ctx, s.staticDir, base, data)
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// writeFile writes data into dir/name through a temp file and a rename, so
// concurrent writers of the same name leave the last complete file behind.
func writeFile(ctx context.Context, dir, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	// The temp name must not grow with name: a base name at the file system
	// limit is still valid as a rename target.
	f, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename into place: %w", err)
	}

	return dst, nil
}
