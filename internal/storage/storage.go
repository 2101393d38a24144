// Package storage provides local and S3-backed file access.
// It defines the Storage interface (port) used to read background images
// and to keep copies of generated artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// S3Scheme prefixes object references, as in s3://bucket/key.
const S3Scheme = "s3://"

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidRef is returned for malformed s3:// references.
	ErrInvalidRef = errors.New("storage: invalid s3 reference")
)

// Storage defines the interface for reading inputs and saving outputs.
type Storage interface {
	// Open returns a reader for a local path or an s3://bucket/key reference.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Save writes data to name inside the storage directory and returns the file path.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// UploadToS3 uploads data to the configured bucket and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// IsS3Ref reports whether ref names an S3 object.
func IsS3Ref(ref string) bool {
	return strings.HasPrefix(ref, S3Scheme)
}

// ParseS3Ref splits s3://bucket/key into its bucket and key.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	if !IsS3Ref(ref) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, S3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return bucket, key, nil
}
