// Package storage provides the on-disk layout for uploads and rendered images.
// It defines the Storage interface (port) and implementations for local disk
// and local disk mirrored to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines where uploaded audio and rendered spectrograms live.
type Storage interface {
	// SaveUpload writes an uploaded file under the upload directory using
	// only the base name of name, overwriting any existing file.
	SaveUpload(ctx context.Context, name string, data io.Reader) (path string, err error)

	// SaveImage writes a rendered image under the static directory,
	// overwriting any existing file of the same name.
	SaveImage(ctx context.Context, name string, data io.Reader) (path string, err error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
