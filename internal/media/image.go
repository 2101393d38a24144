// Package media loads background images for generation requests.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Da-Coder-Jr/Vidiment/internal/request"
	"github.com/Da-Coder-Jr/Vidiment/internal/storage"
)

// MaxImageSize caps how many bytes LoadImage reads from a single ref.
const MaxImageSize = 32 << 20

var (
	// ErrEmptyRef is returned when no image reference is given.
	ErrEmptyRef = errors.New("media: image reference is empty")
	// ErrEmptyImage is returned when the referenced object has no content.
	ErrEmptyImage = errors.New("media: image is empty")
	// ErrImageTooLarge is returned when the image exceeds MaxImageSize.
	ErrImageTooLarge = errors.New("media: image too large")
)

// LoadImage reads the image at ref (local path or s3://bucket/key) and
// returns it as an upload ready to attach to a request.
func LoadImage(ctx context.Context, store storage.Storage, ref string) (*request.Upload, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyRef
	}

	rc, err := store.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", ref, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", ref, err)
	}
	return NewUpload(Filename(ref), data)
}

// NewUpload wraps raw bytes in an upload, detecting the MIME type from content.
func NewUpload(filename string, data []byte) (*request.Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return &request.Upload{
		Data:     data,
		Filename: filename,
		MIMEType: mimetype.Detect(data).String(),
	}, nil
}

// Filename returns the base name of a local path or S3 key.
func Filename(ref string) string {
	ref = strings.TrimPrefix(ref, storage.S3Scheme)
	ref = strings.ReplaceAll(ref, `\`, "/")
	name := path.Base(ref)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
