// Package artifact downloads produced videos from the generator's static
// endpoint and optionally archives them to S3.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/Da-Coder-Jr/Vidiment/internal/storage"
)

// ArchivePrefix is the S3 key prefix for archived artifacts.
const ArchivePrefix = "artifacts/"

var (
	// ErrEmptyURL is returned when Fetch is called without an artifact URL.
	ErrEmptyURL = errors.New("artifact: url is empty")
	// ErrDownloadFailed is returned when the static endpoint answers with a non-2xx status.
	ErrDownloadFailed = errors.New("artifact: download failed")
)

// Saved describes where a fetched artifact ended up.
type Saved struct {
	// Path is the local file path.
	Path string `json:"path"`
	// ArchiveURL is the S3 object URL, empty when archiving is off.
	ArchiveURL string `json:"archive_url,omitempty"`
}

// Fetcher copies artifacts from the static endpoint into storage.
type Fetcher struct {
	store      storage.Storage
	httpClient *http.Client
	archive    bool
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithArchive enables uploading every fetched artifact to S3.
func WithArchive(enabled bool) FetcherOption {
	return func(f *Fetcher) {
		f.archive = enabled
	}
}

// WithLogger sets the fetcher's logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher saving into store.
func NewFetcher(store storage.Storage, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads artifactURL and saves it under its own file name.
// Failures are returned as-is; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, artifactURL string) (Saved, error) {
	if artifactURL == "" {
		return Saved{}, ErrEmptyURL
	}

	name, err := fileName(artifactURL)
	if err != nil {
		return Saved{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return Saved{}, fmt.Errorf("artifact: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Saved{}, fmt.Errorf("artifact: download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Saved{}, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	localPath, err := f.store.Save(ctx, name, resp.Body)
	if err != nil {
		return Saved{}, fmt.Errorf("artifact: save: %w", err)
	}
	saved := Saved{Path: localPath}

	f.logger.Info("artifact saved",
		slog.String("url", artifactURL),
		slog.String("path", localPath),
	)

	if !f.archive {
		return saved, nil
	}

	archiveURL, err := f.upload(ctx, localPath, name)
	if err != nil {
		return saved, err
	}
	saved.ArchiveURL = archiveURL

	f.logger.Info("artifact archived", slog.String("archive_url", archiveURL))
	return saved, nil
}

func (f *Fetcher) upload(ctx context.Context, localPath, name string) (string, error) {
	rc, err := f.store.Open(ctx, localPath)
	if err != nil {
		return "", fmt.Errorf("artifact: reopen: %w", err)
	}
	defer func() { _ = rc.Close() }()

	archiveURL, err := f.store.UploadToS3(ctx, ArchivePrefix+name, rc)
	if err != nil {
		return "", fmt.Errorf("artifact: archive: %w", err)
	}
	return archiveURL, nil
}

func fileName(artifactURL string) (string, error) {
	u, err := url.Parse(artifactURL)
	if err != nil {
		return "", fmt.Errorf("artifact: parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("artifact: no file name in %q", artifactURL)
	}
	return name, nil
}
