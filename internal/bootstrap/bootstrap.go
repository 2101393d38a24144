// Package bootstrap provides dependency initialization for Vidiment.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Da-Coder-Jr/Vidiment/internal/artifact"
	"github.com/Da-Coder-Jr/Vidiment/internal/config"
	"github.com/Da-Coder-Jr/Vidiment/internal/generator"
	"github.com/Da-Coder-Jr/Vidiment/internal/lifecycle"
	"github.com/Da-Coder-Jr/Vidiment/internal/present"
	"github.com/Da-Coder-Jr/Vidiment/internal/storage"
)

// Dependencies holds all initialized dependencies for the server and CLI.
type Dependencies struct {
	Storage    storage.Storage
	Client     *generator.HTTPClient
	Controller *lifecycle.Controller
	Presenter  *present.Presenter
	Fetcher    *artifact.Fetcher

	pool  *ants.Pool
	drain time.Duration
}

// defaultDrainTimeout bounds Close when no HTTP timeout is configured.
const defaultDrainTimeout = 30 * time.Second

// NewDependencies creates and initializes all dependencies for the application.
// Call Close to release the submission pool.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize generation client
	client, err := generator.NewClient(cfg.GeneratorURL,
		generator.WithTimeout(cfg.HTTPTimeout),
		generator.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create generator client: %w", err)
	}

	// Submissions run on a bounded pool
	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(p any) {
		logger.Error("submission panicked", slog.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	controller := lifecycle.NewController(client,
		lifecycle.WithDispatcher(pool),
		lifecycle.WithLogger(logger),
	)

	fetcher := artifact.NewFetcher(store,
		artifact.WithArchive(cfg.S3Enabled()),
		artifact.WithLogger(logger),
	)

	return &Dependencies{
		Storage:    store,
		Client:     client,
		Controller: controller,
		Presenter:  present.NewPresenter(cfg.StaticBase()),
		Fetcher:    fetcher,
		pool:       pool,
		drain:      drainTimeout(cfg.HTTPTimeout),
	}, nil
}

// Close releases the submission pool, waiting for in-flight submissions
// for at most the configured HTTP timeout. A submission still running after
// that is abandoned and Close reports ants.ErrTimeout.
func (d *Dependencies) Close() error {
	if d.pool == nil {
		return nil
	}
	if err := d.pool.ReleaseTimeout(d.drain); err != nil {
		return fmt.Errorf("drain worker pool: %w", err)
	}
	return nil
}

// drainTimeout is the longest a submission can run: the client gives up on
// the channel call after the HTTP timeout.
func drainTimeout(httpTimeout time.Duration) time.Duration {
	if httpTimeout <= 0 {
		return defaultDrainTimeout
	}
	return httpTimeout
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.DownloadDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("download_dir", cfg.DownloadDir),
	)
	return localStore, nil
}
