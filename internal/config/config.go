// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kbukum/gokit/util"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/audiocut-api/internal/timecode"
)

// Static errors for configuration validation.
var (
	// ErrInvalidDefaultTime is returned when a DEFAULT_* time spec does not parse.
	ErrInvalidDefaultTime = errors.New("config: default time must be [[HH:]MM:]SS")
	// ErrNonPositiveDefault is returned when DEFAULT_DURATION or DEFAULT_CHUNK_DURATION is zero.
	ErrNonPositiveDefault = errors.New("config: default durations must be greater than zero")
	// ErrInvalidUploadSize is returned when MAX_UPLOAD_SIZE cannot be parsed.
	ErrInvalidUploadSize = errors.New("config: MAX_UPLOAD_SIZE must be a size like 512MB")
	// ErrNegativeLimit is returned when a timeout or concurrency limit is negative.
	ErrNegativeLimit = errors.New("config: timeouts and concurrency limits must not be negative")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	MaxUploadSize  string        `env:"MAX_UPLOAD_SIZE, default=512MB" json:"max_upload_size"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=60m" json:"request_timeout"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/audiocut" json:"temp_dir"`

	// Transcoder settings
	FFmpegPath              string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath             string        `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	AudioBitrate            string        `env:"AUDIO_BITRATE, default=192k" json:"audio_bitrate"`
	ProcessTimeout          time.Duration `env:"PROCESS_TIMEOUT, default=10m" json:"process_timeout"`
	MaxConcurrentTranscodes int           `env:"MAX_CONCURRENT_TRANSCODES, default=4" json:"max_concurrent_transcodes"`
	TranscodeQueueWait      time.Duration `env:"TRANSCODE_QUEUE_WAIT, default=30s" json:"transcode_queue_wait"`

	// Request defaults, used when a form field is empty
	DefaultStart         string `env:"DEFAULT_START, default=00:00:00" json:"default_start"`
	DefaultDuration      string `env:"DEFAULT_DURATION, default=00:00:30" json:"default_duration"`
	DefaultChunkDuration string `env:"DEFAULT_CHUNK_DURATION, default=00:20:00" json:"default_chunk_duration"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes returns MAX_UPLOAD_SIZE in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return util.ParseSize(c.MaxUploadSize, 512<<20)
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for name, spec := range map[string]string{
		"DEFAULT_START":          c.DefaultStart,
		"DEFAULT_DURATION":       c.DefaultDuration,
		"DEFAULT_CHUNK_DURATION": c.DefaultChunkDuration,
	} {
		if !timecode.Valid(spec) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDefaultTime, name, spec)
		}
	}
	for name, spec := range map[string]string{
		"DEFAULT_DURATION":       c.DefaultDuration,
		"DEFAULT_CHUNK_DURATION": c.DefaultChunkDuration,
	} {
		if n, _ := timecode.Parse(spec); n <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrNonPositiveDefault, name, spec)
		}
	}

	if util.ParseSize(c.MaxUploadSize, -1) <= 0 {
		return fmt.Errorf("%w: got %q", ErrInvalidUploadSize, c.MaxUploadSize)
	}

	if c.ProcessTimeout < 0 || c.RequestTimeout < 0 || c.TranscodeQueueWait < 0 || c.MaxConcurrentTranscodes < 0 {
		return ErrNegativeLimit
	}

	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	accessKey := ""
	if c.AWSAccessKeyID != "" {
		accessKey = util.MaskSecret(c.AWSAccessKeyID, 4)
	}
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, FFprobePath: %s, AudioBitrate: %s, MaxUploadSize: %s, ProcessTimeout: %s, RequestTimeout: %s, MaxConcurrentTranscodes: %d, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.AudioBitrate,
		c.MaxUploadSize,
		c.ProcessTimeout,
		c.RequestTimeout,
		c.MaxConcurrentTranscodes,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		accessKey,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
