// Package bootstrap provides dependency initialization for the audiocut API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/audiocut-api/internal/config"
	"github.com/maauso/audiocut-api/internal/cut"
	"github.com/maauso/audiocut-api/internal/media"
	"github.com/maauso/audiocut-api/internal/metrics"
	"github.com/maauso/audiocut-api/internal/server"
	"github.com/maauso/audiocut-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service  *cut.Service
	Store    storage.Storage
	Metrics  *metrics.Metrics
	Handlers *server.Handlers
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// The runner reports into metrics, and metrics read the runner's slot usage
	var m *metrics.Metrics
	runner := media.NewRunner(media.RunnerConfig{
		MaxConcurrent: cfg.MaxConcurrentTranscodes,
		QueueWait:     cfg.TranscodeQueueWait,
		Timeout:       cfg.ProcessTimeout,
		Observer: func(tool string, elapsed time.Duration, err error) {
			m.ObserveProcess(tool, elapsed, err)
		},
	})
	m = metrics.New(runner.InUse)

	processor := media.NewFFmpegProcessor(
		cfg.FFmpegPath,
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithBitrate(cfg.AudioBitrate),
		media.WithRunner(runner),
	)

	svc := cut.NewService(
		processor,
		store,
		logger,
		cut.WithPublishing(cfg.S3Enabled()),
	)

	handlers := server.NewHandlers(
		svc,
		store,
		logger,
		server.WithMetrics(m),
		server.WithRequestTimeout(cfg.RequestTimeout),
		server.WithDefaults(server.Defaults{
			Start:         cfg.DefaultStart,
			Duration:      cfg.DefaultDuration,
			ChunkDuration: cfg.DefaultChunkDuration,
		}),
	)

	return &Dependencies{
		Service:  svc,
		Store:    store,
		Metrics:  m,
		Handlers: handlers,
	}, nil
}

// RouterConfig derives the HTTP router settings from cfg.
func RouterConfig(cfg *config.Config) server.Config {
	rc := server.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		rc.AllowedOrigins = cfg.AllowedOrigins
	}
	rc.MaxUploadBytes = cfg.MaxUploadBytes()
	return rc
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
